package jobfile

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/dispatch/pkg/model"
)

func testParser() *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testdataPath(rel string) string {
	return filepath.Join("..", "..", "testdata", "jobs", rel)
}

func TestParse_Triples(t *testing.T) {
	p := testParser()

	descs, err := p.Parse(strings.NewReader("0 1 5\n  0 2\n5\n\n3\t0 1"), "inline")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []Descriptor{
		{Seq: 1, Arrival: 0, Priority: 1, ProcessorTime: 5},
		{Seq: 2, Arrival: 0, Priority: 2, ProcessorTime: 5},
		{Seq: 3, Arrival: 3, Priority: 0, ProcessorTime: 1},
	}
	if len(descs) != len(want) {
		t.Fatalf("got %d descriptors, want %d", len(descs), len(want))
	}
	for i := range want {
		if descs[i] != want[i] {
			t.Errorf("descs[%d] = %+v, want %+v", i, descs[i], want[i])
		}
	}
}

func TestParse_Empty(t *testing.T) {
	descs, err := testParser().Parse(strings.NewReader("  \n"), "empty")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descs) != 0 {
		t.Errorf("got %d descriptors, want 0", len(descs))
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		token int
		msg   string
	}{
		{"non-integer", "0 1 x", 3, "not an integer"},
		{"truncated", "0 1 2 4 1", 5, "incomplete job"},
		{"negative arrival", "-1 1 2", 3, "negative arrival"},
		{"negative time", "0 1 -2", 3, "negative processor time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testParser().Parse(strings.NewReader(tt.input), "bad")
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *SyntaxError", err)
			}
			if se.Token != tt.token {
				t.Errorf("Token = %d, want %d", se.Token, tt.token)
			}
			if !strings.Contains(se.Msg, tt.msg) {
				t.Errorf("Msg = %q, want it to contain %q", se.Msg, tt.msg)
			}
		})
	}
}

func TestParse_OutOfRangePriorityPassesThrough(t *testing.T) {
	descs, err := testParser().Parse(strings.NewReader("9 7 1"), "inline")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if descs[0].Priority != 7 {
		t.Errorf("Priority = %d, want 7 (admission clamps, not the parser)", descs[0].Priority)
	}
}

func TestParseFile_TriplesAndYAMLAgree(t *testing.T) {
	p := testParser()

	fromYAML, err := p.ParseFile(testdataPath("mixed.yaml"))
	if err != nil {
		t.Fatalf("ParseFile(yaml): %v", err)
	}
	fromText, err := p.ParseFile(testdataPath("mixed.txt"))
	if err != nil {
		t.Fatalf("ParseFile(txt): %v", err)
	}

	if len(fromYAML) != 3 {
		t.Fatalf("yaml: got %d jobs, want 3", len(fromYAML))
	}
	for i := range fromYAML {
		if fromYAML[i] != fromText[i] {
			t.Errorf("job %d: yaml %+v != text %+v", i+1, fromYAML[i], fromText[i])
		}
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := testParser().ParseFile(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, model.ErrFileOpen) {
		t.Fatalf("err = %v, want ErrFileOpen", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := testParser().ParseYAML([]byte("jobs:\n  - arrival: 0\n    prio: 1\n"), "bad.yaml")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
}

func TestSource_SortsByArrival(t *testing.T) {
	src := NewSource([]Descriptor{
		{Seq: 1, Arrival: 4},
		{Seq: 2, Arrival: 0},
		{Seq: 3, Arrival: 4},
		{Seq: 4, Arrival: 1},
	})

	var order []int
	for !src.Exhausted() {
		d, _ := src.Pop()
		order = append(order, d.Seq)
	}
	want := []int{2, 4, 1, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", order, want)
		}
	}
	if _, ok := src.Peek(); ok {
		t.Error("Peek on exhausted source returned ok")
	}
	if len(src.All()) != 4 {
		t.Errorf("All() = %d descriptors, want 4", len(src.All()))
	}
}
