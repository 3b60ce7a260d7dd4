// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliases(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{
			"simple",
			"@HD\tVN:1.6\tSO:coordinate\n" +
				"@SQ\tSN:r0\tLN:100\tAN:r0a0\n" +
				"@SQ\tSN:r1\tLN:100\tAN:r1a0,r1a1\n" +
				"@SQ\tSN:r2\tLN:100\n",
			map[string]string{"r0a0": "r0", "r1a0": "r1", "r1a1": "r1"},
		},
		{
			"complex",
			"@HD\tVN:1.6\n" +
				"@SQ\tSN:1\tLN:249250621\n" +
				"@SQ\tAN:testA,testB\tSN:2\tLN:243199373\n" +
				"@RG\tID:group\tSM:sample\n" +
				"@SQ\tSN:GL000226.1\tLN:15008\tAN:chrUn_gl000226\n" +
				"@PG\tID:bwa\tPN:bwa\n",
			map[string]string{"testA": "2", "testB": "2", "chrUn_gl000226": "GL000226.1"},
		},
		{
			"no references",
			"@HD\tVN:1.6\n",
			map[string]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Aliases(strings.NewReader(tc.header))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAliases_MissingName(t *testing.T) {
	_, err := Aliases(strings.NewReader("@SQ\tLN:100\tAN:x\n"))
	assert.Error(t, err)
}
