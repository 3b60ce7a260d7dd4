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

// Package sam reads reference naming details from SAM header text.
package sam

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`\b(SN|AN):(\S+)\b`)

// Aliases maps every alternative reference name declared with the AN tag of
// an @SQ line to the primary SN name of that line.
func Aliases(r io.Reader) (map[string]string, error) {
	aliases := make(map[string]string)

	// @SQ SN:foo LN:5 AN:bar,baz ...
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "@SQ") {
			continue
		}
		var name string
		var alternatives []string
		for _, tag := range tagRe.FindAllStringSubmatch(scanner.Text(), -1) {
			switch tag[1] {
			case "SN":
				name = tag[2]
			case "AN":
				alternatives = append(alternatives, strings.Split(tag[2], ",")...)
			}
		}
		if name == "" {
			return nil, fmt.Errorf("@SQ line without SN tag: %q", scanner.Text())
		}
		for _, alternative := range alternatives {
			if alternative != "" && alternative != name {
				aliases[alternative] = name
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	return aliases, nil
}
