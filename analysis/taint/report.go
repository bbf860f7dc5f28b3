// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taint

import (
	"bufio"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteChains writes the chains in text form: the source link of each chain on its own line, then each following
// link indented by two spaces, then an empty line.
func WriteChains(w io.Writer, chains []Chain) error {
	bw := bufio.NewWriter(w)
	for _, c := range chains {
		for i, l := range c {
			if i > 0 {
				bw.WriteString("  ")
			}
			bw.WriteString(l.String())
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReportLink is a link of a chain in the JSON report
type ReportLink struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	Desc   string `json:"desc"`
	Arg    int    `json:"arg"`
}

// Report is the JSON report of a search
type Report struct {
	RunID     string         `json:"run_id"`
	Framework string         `json:"framework"`
	Stats     Stats          `json:"stats"`
	Chains    [][]ReportLink `json:"chains"`
}

// NewReport returns the report of the chains found by a search, with a fresh run id
func NewReport(framework string, chains []Chain, stats Stats) Report {
	r := Report{
		RunID:     uuid.NewString(),
		Framework: framework,
		Stats:     stats,
		Chains:    make([][]ReportLink, 0, len(chains)),
	}
	for _, c := range chains {
		links := make([]ReportLink, len(c))
		for i, l := range c {
			links[i] = ReportLink{Class: l.Method.Class.Name(), Method: l.Method.Name, Desc: l.Method.Desc, Arg: l.Arg}
		}
		r.Chains = append(r.Chains, links)
	}
	return r
}

// WriteJSON writes the report as indented JSON
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
