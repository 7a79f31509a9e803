// Package jobfile reads job description files into an ordered job source.
package jobfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/me/dispatch/pkg/model"
	"gopkg.in/yaml.v3"
)

// Descriptor is one parsed job line: arrival time, priority and processor time.
type Descriptor struct {
	Seq           int `yaml:"-" json:"seq"`
	Arrival       int `yaml:"arrival" json:"arrival"`
	Priority      int `yaml:"priority" json:"priority"`
	ProcessorTime int `yaml:"processor_time" json:"processor_time"`
}

// String renders the descriptor in the reference display format.
func (d Descriptor) String() string {
	return fmt.Sprintf("<%d>, <%d>, <%d>", d.Arrival, d.Priority, d.ProcessorTime)
}

// SyntaxError reports a malformed job file. Token is the 1-based token
// index for the triple format and the 1-based job index for YAML.
type SyntaxError struct {
	File  string
	Token int
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token > 0 {
		return fmt.Sprintf("%s: token %d: %s", e.File, e.Token, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// yamlFile is the YAML job file layout.
type yamlFile struct {
	Jobs []Descriptor `yaml:"jobs"`
}

// Parser converts job description files into descriptors.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "jobfile")}
}

// ParseFile opens path and parses it. Files ending in .yaml or .yml use the
// YAML layout; anything else is read as whitespace-separated triples.
// An unreadable file yields an error wrapping model.ErrFileOpen.
func (p *Parser) ParseFile(path string) ([]Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", model.ErrFileOpen, path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return p.ParseYAML(data, name)
	default:
		return p.Parse(f, name)
	}
}

// Parse reads `<arrival> <priority> <processorTime>` triples until EOF.
func (p *Parser) Parse(r io.Reader, name string) ([]Descriptor, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var (
		descs  []Descriptor
		triple [3]int
		n      int
		token  int
	)
	for sc.Scan() {
		token++
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return nil, &SyntaxError{File: name, Token: token, Msg: fmt.Sprintf("%q is not an integer", sc.Text())}
		}
		triple[n] = v
		n++
		if n < 3 {
			continue
		}
		n = 0
		d := Descriptor{
			Seq:           len(descs) + 1,
			Arrival:       triple[0],
			Priority:      triple[1],
			ProcessorTime: triple[2],
		}
		if err := validate(d); err != nil {
			return nil, &SyntaxError{File: name, Token: token, Msg: err.Error()}
		}
		descs = append(descs, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if n != 0 {
		return nil, &SyntaxError{File: name, Token: token, Msg: fmt.Sprintf("incomplete job: %d of 3 fields", n)}
	}

	p.logger.Debug("job file parsed", "file", name, "jobs", len(descs))
	return descs, nil
}

// ParseYAML parses the YAML job file layout.
func (p *Parser) ParseYAML(data []byte, name string) ([]Descriptor, error) {
	var doc yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, &SyntaxError{File: name, Msg: fmt.Sprintf("YAML parse error: %v", err)}
	}

	for i := range doc.Jobs {
		doc.Jobs[i].Seq = i + 1
		if err := validate(doc.Jobs[i]); err != nil {
			return nil, &SyntaxError{File: name, Token: i + 1, Msg: err.Error()}
		}
	}

	p.logger.Debug("job file parsed", "file", name, "jobs", len(doc.Jobs), "format", "yaml")
	return doc.Jobs, nil
}

// validate rejects values no tier policy can correct. Out-of-range
// priorities pass through; admission clamps them.
func validate(d Descriptor) error {
	if d.Arrival < 0 {
		return fmt.Errorf("job %d: negative arrival time %d", d.Seq, d.Arrival)
	}
	if d.ProcessorTime < 0 {
		return fmt.Errorf("job %d: negative processor time %d", d.Seq, d.ProcessorTime)
	}
	return nil
}

// SortByArrival orders descriptors by arrival time, keeping file order for ties.
func SortByArrival(descs []Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].Arrival < descs[j].Arrival
	})
}
