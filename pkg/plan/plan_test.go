package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/planviz/planviz/pkg/errors"
)

func TestReadFullDocument(t *testing.T) {
	doc := `{
		"graph": {
			"aws_vpc.main": [],
			"aws_subnet.a": ["aws_vpc.main"],
			"aws_instance.web": ["aws_subnet.a"]
		},
		"attributes": {
			"aws_instance.web": {"instance_type": "t3.small", "count": 2}
		}
	}`

	s, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if s.NodeCount() != 3 {
		t.Errorf("NodeCount = %d, want 3", s.NodeCount())
	}
	if s.EdgeCount() != 2 {
		t.Errorf("EdgeCount = %d, want 2", s.EdgeCount())
	}

	n, ok := s.Node("aws_instance.web")
	if !ok {
		t.Fatal("aws_instance.web missing")
	}
	if n.Attrs["instance_type"] != "t3.small" {
		t.Errorf("attrs = %v", n.Attrs)
	}
	if n.Cardinality() != 2 {
		t.Errorf("Cardinality = %d, want 2", n.Cardinality())
	}
	if Dropped(s) != 0 {
		t.Errorf("Dropped = %d, want 0", Dropped(s))
	}
}

func TestReadBareAdjacency(t *testing.T) {
	doc := `{"aws_vpc.main": [], "aws_subnet.a": ["aws_vpc.main"]}`

	s, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if s.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", s.NodeCount())
	}
}

func TestReadDropsDanglingEdges(t *testing.T) {
	doc := `{
		"graph": {
			"aws_instance.web": ["aws_subnet.gone", "aws_vpc.main"],
			"aws_vpc.main": []
		}
	}`

	s, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if s.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1 (dangling edge dropped)", s.EdgeCount())
	}
	if Dropped(s) != 1 {
		t.Errorf("Dropped = %d, want 1", Dropped(s))
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() after import: %v", err)
	}
}

func TestReadDropsMalformedIdentifiers(t *testing.T) {
	doc := `{
		"graph": {
			"notanid": [],
			"aws_vpc.main": ["notanid"]
		}
	}`

	s, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if s.HasNode("notanid") {
		t.Error("malformed identifier should be dropped")
	}
	if s.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", s.NodeCount())
	}
	// One drop for the node, one for the edge into it.
	if Dropped(s) != 2 {
		t.Errorf("Dropped = %d, want 2", Dropped(s))
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "not json at all"},
		{"empty object", "{}"},
		{"wrong shape", `{"graph": "nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.doc))
			if !errors.Is(err, errors.ErrCodeInvalidDocument) {
				t.Errorf("error = %v, want DATA_INVALID_DOCUMENT", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, []byte(`{"aws_vpc.main": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !s.HasNode("aws_vpc.main") {
		t.Error("node missing after Load")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
