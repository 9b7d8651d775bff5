package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/planviz/planviz/pkg/cache"
)

const testPlan = `{
  "graph": {
    "aws_vpc.main": [],
    "aws_subnet.a": ["aws_vpc.main"],
    "aws_instance.web": ["aws_subnet.a"],
    "aws_db_instance.main": ["aws_instance.web"]
  },
  "attributes": {
    "aws_subnet.a": {"availability_zone": "eu-west-1a"},
    "aws_instance.web": {"count": 2}
  }
}`

func writePlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, []byte(testPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestOptions_Validate(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err == nil {
		t.Error("empty options should fail validation")
	}

	o = Options{Source: "plan.json"}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error = %v", err)
	}
	if len(o.Formats) != 1 || o.Formats[0] != DefaultFormat {
		t.Errorf("Formats = %v, want [%s]", o.Formats, DefaultFormat)
	}
	if o.Table == nil {
		t.Error("Table default not applied")
	}

	o = Options{Source: "plan.json", Formats: []string{"pdf"}}
	if err := o.ValidateAndSetDefaults(); err == nil {
		t.Error("unsupported format should fail validation")
	}
}

func TestExecute_DotArtifact(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	defer runner.Close()

	result, err := runner.Execute(context.Background(), Options{
		Source:  writePlan(t),
		Formats: []string{"dot"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run ID")
	}
	if result.DocHash == "" {
		t.Error("missing document hash")
	}
	dot, ok := result.Artifacts["dot"]
	if !ok || len(dot) == 0 {
		t.Fatal("dot artifact missing")
	}
	// The counted instance must have been expanded.
	if !result.Store.HasNode("aws_instance.web~1") {
		t.Errorf("expanded instance missing, have %v", result.Store.IDs())
	}
}

func TestExecute_MissingSource(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	defer runner.Close()

	_, err := runner.Execute(context.Background(), Options{
		Source:  filepath.Join(t.TempDir(), "nope.json"),
		Formats: []string{"dot"},
	})
	if err == nil {
		t.Error("Execute() should fail for a missing source")
	}
}

func TestExecute_InlinePlan(t *testing.T) {
	runner := NewRunner(nil, nil, quietLogger())
	defer runner.Close()

	result, err := runner.Execute(context.Background(), Options{
		Plan:    []byte(testPlan),
		Formats: []string{"dot"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Stats.NodeCount == 0 {
		t.Error("inline plan produced an empty graph")
	}
}

func TestOptionsInlinePlanEmbedsNatively(t *testing.T) {
	data, err := json.Marshal(Options{
		Plan:    json.RawMessage(testPlan),
		Formats: []string{"dot"},
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	// API clients embed the plan document as JSON, not as a base64 string.
	if !bytes.Contains(data, []byte(`"plan":{`)) {
		t.Errorf("serialized options = %s, want the plan embedded as an object", data)
	}

	var got Options
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got.Plan) == 0 {
		t.Error("round trip lost the inline plan")
	}
}

func TestExecute_CacheRoundTrip(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, quietLogger())
	defer runner.Close()

	opts := Options{Source: writePlan(t), Formats: []string{"dot"}}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if first.CacheInfo.EnrichHit || first.CacheInfo.RenderHit {
		t.Error("first run must not hit the cache")
	}

	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if !second.CacheInfo.EnrichHit {
		t.Error("second run should reuse the enriched document")
	}
	if !second.CacheInfo.RenderHit {
		t.Error("second run should reuse the rendered artifact")
	}
	if second.DocHash != first.DocHash {
		t.Errorf("document hash changed between runs: %q vs %q", first.DocHash, second.DocHash)
	}
	if string(second.Artifacts["dot"]) != string(first.Artifacts["dot"]) {
		t.Error("cached artifact differs from the rendered one")
	}
}

func TestExecute_RefreshBypassesCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, quietLogger())
	defer runner.Close()

	opts := Options{Source: writePlan(t), Formats: []string{"dot"}}
	if _, err := runner.Execute(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	opts.Refresh = true
	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheInfo.EnrichHit || result.CacheInfo.RenderHit {
		t.Error("refresh run must not hit the cache")
	}
}

func TestExecute_OverlayChangesCacheKey(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, quietLogger())
	defer runner.Close()

	planPath := writePlan(t)
	if _, err := runner.Execute(context.Background(), Options{Source: planPath, Formats: []string{"dot"}}); err != nil {
		t.Fatal(err)
	}

	overlayPath := filepath.Join(t.TempDir(), "overlay.yaml")
	overlay := "add:\n  aws_group.users:\n    - aws_instance.web\n"
	if err := os.WriteFile(overlayPath, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := runner.Execute(context.Background(), Options{
		Source:   planPath,
		Annotate: overlayPath,
		Formats:  []string{"dot"},
	})
	if err != nil {
		t.Fatalf("Execute() with overlay error = %v", err)
	}
	if result.CacheInfo.EnrichHit {
		t.Error("overlay run must not reuse the plain document")
	}
	if !result.Store.HasNode("aws_group.users") {
		t.Error("overlay node missing from enriched graph")
	}
}
