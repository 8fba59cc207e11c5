// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cmdspec

import "testing"

func TestParseSplitsArgs(t *testing.T) {
	spec, err := Parse("python server.py --flag value")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Program != "python" {
		t.Errorf("Program = %q", spec.Program)
	}
	want := []string{"server.py", "--flag", "value"}
	if len(spec.Args) != len(want) {
		t.Fatalf("Args = %v", spec.Args)
	}
	for i, v := range want {
		if spec.Args[i] != v {
			t.Errorf("Args[%d] = %q, want %q", i, spec.Args[i], v)
		}
	}
}

func TestParseHonorsQuoting(t *testing.T) {
	spec, err := Parse(`python server.py --name "hello world"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(spec.Args) != 3 || spec.Args[2] != "hello world" {
		t.Errorf("Args = %v", spec.Args)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("Parse(\"\") should fail")
	}
}
