package enrich

import (
	"context"
	"slices"
	"testing"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

func mustNode(t *testing.T, s *graph.Store, n graph.Node) {
	t.Helper()
	if err := s.AddNode(n); err != nil {
		t.Fatalf("AddNode(%s): %v", n.ID, err)
	}
}

func mustEdge(t *testing.T, s *graph.Store, from, to string) {
	t.Helper()
	if err := s.AddEdge(graph.Edge{From: from, To: to}); err != nil {
		t.Fatalf("AddEdge(%s -> %s): %v", from, to, err)
	}
}

func TestBuildRelations_AttributeMention(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_route53_record.www", Attrs: graph.Attrs{
		"records": []any{"aws_cloudfront_distribution.cdn"},
	}})
	mustNode(t, s, graph.Node{ID: "aws_cloudfront_distribution.cdn"})

	table := &rules.Table{Implied: []rules.Implied{
		{Attr: "records", Target: "aws_cloudfront_distribution"},
	}}
	if err := BuildRelations(s, table); err != nil {
		t.Fatalf("BuildRelations() error = %v", err)
	}

	if _, ok := s.Edge("aws_route53_record.www", "aws_cloudfront_distribution.cdn"); !ok {
		t.Error("expected implied edge record -> distribution")
	}
}

func TestBuildRelations_NoMatchNoEdge(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_route53_record.www", Attrs: graph.Attrs{
		"records": []any{"203.0.113.10"},
	}})
	mustNode(t, s, graph.Node{ID: "aws_cloudfront_distribution.cdn"})

	table := &rules.Table{Implied: []rules.Implied{
		{Attr: "records", Target: "aws_cloudfront_distribution"},
	}}
	if err := BuildRelations(s, table); err != nil {
		t.Fatalf("BuildRelations() error = %v", err)
	}
	if s.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0", s.EdgeCount())
	}
}

func TestConsolidate_MergesMatchingNodes(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_lb.front", Attrs: graph.Attrs{"internal": false}})
	mustNode(t, s, graph.Node{ID: "aws_lb_listener.http"})
	mustNode(t, s, graph.Node{ID: "aws_instance.web"})
	mustEdge(t, s, "aws_lb_listener.http", "aws_lb.front")
	mustEdge(t, s, "aws_instance.web", "aws_lb_listener.http")

	table := &rules.Table{Consolidations: []rules.Consolidation{
		{Prefix: "aws_lb", Target: "aws_lb.elb"},
	}}
	if err := Consolidate(s, table); err != nil {
		t.Fatalf("Consolidate() error = %v", err)
	}

	if s.HasNode("aws_lb.front") || s.HasNode("aws_lb_listener.http") {
		t.Error("source nodes should be gone after consolidation")
	}
	n, ok := s.Node("aws_lb.elb")
	if !ok {
		t.Fatal("canonical node aws_lb.elb missing")
	}
	if !n.Consolidated {
		t.Error("canonical node not marked consolidated")
	}
	if n.Attrs["internal"] != false {
		t.Errorf("Attrs[internal] = %v, want false", n.Attrs["internal"])
	}
	if _, ok := s.Edge("aws_instance.web", "aws_lb.elb"); !ok {
		t.Error("edge into merged node not redirected")
	}
	// The inter-member edge collapsed into a self reference and must be gone.
	if _, ok := s.Edge("aws_lb.elb", "aws_lb.elb"); ok {
		t.Error("self loop left behind by consolidation")
	}
}

func TestConsolidate_Idempotent(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_lb.front"})
	table := &rules.Table{Consolidations: []rules.Consolidation{
		{Prefix: "aws_lb", Target: "aws_lb.elb"},
	}}
	for range 2 {
		if err := Consolidate(s, table); err != nil {
			t.Fatalf("Consolidate() error = %v", err)
		}
	}
	if got := s.NodeCount(); got != 1 {
		t.Errorf("NodeCount() = %d, want 1", got)
	}
}

func TestResolveVariants_KeywordRewritesType(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_ecs_service.app", Attrs: graph.Attrs{
		"launch_type": "FARGATE",
	}})

	table := &rules.Table{Variants: []rules.Variant{{
		Type: "aws_ecs_service",
		Keywords: []rules.Keyword{
			{Match: "fargate", Variant: "aws_fargate_service"},
		},
	}}}
	if err := ResolveVariants(s, table); err != nil {
		t.Fatalf("ResolveVariants() error = %v", err)
	}

	n, _ := s.Node("aws_ecs_service.app")
	if n.Type != "aws_fargate_service" {
		t.Errorf("Type = %q, want aws_fargate_service", n.Type)
	}
	if !s.HasNode("aws_ecs_service.app") {
		t.Error("identifier must stay stable across variant resolution")
	}
}

func TestResolveVariants_FirstKeywordWins(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_ecs_service.app", Attrs: graph.Attrs{
		"notes": "fargate and ec2",
	}})

	table := &rules.Table{Variants: []rules.Variant{{
		Type: "aws_ecs_service",
		Keywords: []rules.Keyword{
			{Match: "ec2", Variant: "aws_ecs_ec2"},
			{Match: "fargate", Variant: "aws_fargate_service"},
		},
	}}}
	if err := ResolveVariants(s, table); err != nil {
		t.Fatalf("ResolveVariants() error = %v", err)
	}
	n, _ := s.Node("aws_ecs_service.app")
	if n.Type != "aws_ecs_ec2" {
		t.Errorf("Type = %q, want first declared match aws_ecs_ec2", n.Type)
	}
}

func TestResolveVariants_TypePrefixMatches(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_rds_cluster.main", Attrs: graph.Attrs{
		"engine": "aurora-postgresql",
	}})

	// The built-in table declares the rule for aws_rds; the concrete cluster
	// type must still pick it up.
	if err := ResolveVariants(s, rules.AWS()); err != nil {
		t.Fatalf("ResolveVariants() error = %v", err)
	}
	n, _ := s.Node("aws_rds_cluster.main")
	if n.Type != "aws_rds_aurora" {
		t.Errorf("Type = %q, want aws_rds_aurora", n.Type)
	}
}

func TestExpand_CountFansOut(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web", Attrs: graph.Attrs{"count": 3}})
	mustNode(t, s, graph.Node{ID: "aws_lb.elb"})
	mustNode(t, s, graph.Node{ID: "aws_db_instance.main"})
	mustEdge(t, s, "aws_lb.elb", "aws_instance.web")
	mustEdge(t, s, "aws_instance.web", "aws_db_instance.main")

	if err := Expand(s); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	if s.HasNode("aws_instance.web") {
		t.Error("expanded base node should be removed")
	}
	for i := 1; i <= 3; i++ {
		id := graph.InstanceID("aws_instance.web", i)
		if !s.HasNode(id) {
			t.Fatalf("missing instance %s", id)
		}
		if _, ok := s.Edge("aws_lb.elb", id); !ok {
			t.Errorf("incoming edge not fanned out to %s", id)
		}
		if _, ok := s.Edge(id, "aws_db_instance.main"); !ok {
			t.Errorf("outgoing edge not duplicated for %s", id)
		}
	}
}

func TestExpand_SingleTargetEdge(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web", Attrs: graph.Attrs{"count": 2}})
	mustNode(t, s, graph.Node{ID: "aws_eip.ip"})
	if err := s.AddEdge(graph.Edge{From: "aws_eip.ip", To: "aws_instance.web", SingleTarget: true}); err != nil {
		t.Fatal(err)
	}

	if err := Expand(s); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	if _, ok := s.Edge("aws_eip.ip", "aws_instance.web~1"); !ok {
		t.Error("single-target edge should reach the first instance")
	}
	if _, ok := s.Edge("aws_eip.ip", "aws_instance.web~2"); ok {
		t.Error("single-target edge must not fan out past the first instance")
	}
}

func TestExpand_ForEachCardinality(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_subnet.private", Attrs: graph.Attrs{
		"for_each": map[string]any{"a": "10.0.1.0/24", "b": "10.0.2.0/24"},
	}})

	if err := Expand(s); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !s.HasNode("aws_subnet.private~1") || !s.HasNode("aws_subnet.private~2") {
		t.Errorf("for_each node not expanded, have %v", s.IDs())
	}
}

func TestExpand_Idempotent(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web", Attrs: graph.Attrs{"count": 2}})
	if err := Expand(s); err != nil {
		t.Fatal(err)
	}
	before := s.IDs()
	if err := Expand(s); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(before, s.IDs()) {
		t.Errorf("second Expand changed the graph: %v vs %v", before, s.IDs())
	}
}

func TestNormalizeArrows_ReverseList(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web"})
	mustNode(t, s, graph.Node{ID: "aws_subnet.private"})
	mustEdge(t, s, "aws_instance.web", "aws_subnet.private")

	table := &rules.Table{ReverseArrows: []string{"aws_subnet"}}
	if err := NormalizeArrows(s, table); err != nil {
		t.Fatalf("NormalizeArrows() error = %v", err)
	}

	e, ok := s.Edge("aws_subnet.private", "aws_instance.web")
	if !ok {
		t.Fatal("edge not reversed toward the container's contents")
	}
	if !e.Locked {
		t.Error("normalized edge should be locked")
	}
}

func TestNormalizeArrows_ContainerChainStays(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_vpc.main"})
	mustNode(t, s, graph.Node{ID: "aws_subnet.private"})
	mustEdge(t, s, "aws_vpc.main", "aws_subnet.private")

	table := &rules.Table{ReverseArrows: []string{"aws_vpc", "aws_subnet"}}
	if err := NormalizeArrows(s, table); err != nil {
		t.Fatalf("NormalizeArrows() error = %v", err)
	}
	if _, ok := s.Edge("aws_vpc.main", "aws_subnet.private"); !ok {
		t.Error("edge between two containers must keep its direction")
	}
}

func TestNormalizeArrows_LaterClassWins(t *testing.T) {
	// The destination sits on the reverse list, but the origin is a forced
	// destination: the forced-destination pass runs later and re-swaps.
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_ses_email.mail"})
	mustNode(t, s, graph.Node{ID: "aws_subnet.private"})
	mustEdge(t, s, "aws_ses_email.mail", "aws_subnet.private")

	table := &rules.Table{
		ReverseArrows: []string{"aws_subnet"},
		ForcedDest:    []string{"aws_ses"},
	}
	if err := NormalizeArrows(s, table); err != nil {
		t.Fatalf("NormalizeArrows() error = %v", err)
	}
	if _, ok := s.Edge("aws_subnet.private", "aws_ses_email.mail"); !ok {
		t.Error("forced destination must end up on the receiving side")
	}
}

func TestNormalizeArrows_Idempotent(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web"})
	mustNode(t, s, graph.Node{ID: "aws_subnet.private"})
	mustEdge(t, s, "aws_instance.web", "aws_subnet.private")

	table := &rules.Table{ReverseArrows: []string{"aws_subnet"}}
	for range 2 {
		if err := NormalizeArrows(s, table); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := s.Edge("aws_subnet.private", "aws_instance.web"); !ok {
		t.Error("second pass flipped a locked edge back")
	}
}

func TestBreakCycles_SelfLoop(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.a"})
	mustEdge(t, s, "aws_instance.a", "aws_instance.a")

	if err := BreakCycles(s, &rules.Table{}); err != nil {
		t.Fatalf("BreakCycles() error = %v", err)
	}
	if s.EdgeCount() != 0 {
		t.Errorf("EdgeCount() = %d, want 0", s.EdgeCount())
	}
}

func TestBreakCycles_TwoNodeCycle(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.a"})
	mustNode(t, s, graph.Node{ID: "aws_instance.b"})
	mustEdge(t, s, "aws_instance.a", "aws_instance.b")
	mustEdge(t, s, "aws_instance.b", "aws_instance.a")

	if err := BreakCycles(s, &rules.Table{}); err != nil {
		t.Fatalf("BreakCycles() error = %v", err)
	}
	if s.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", s.EdgeCount())
	}
}

func TestBreakCycles_AlwaysVisibleSurvives(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_efs_mount_target.mt"})
	mustNode(t, s, graph.Node{ID: "aws_efs_file_system.fs"})
	if err := s.AddEdge(graph.Edge{From: "aws_efs_mount_target.mt", To: "aws_efs_file_system.fs", AlwaysVisible: true}); err != nil {
		t.Fatal(err)
	}
	mustEdge(t, s, "aws_efs_file_system.fs", "aws_efs_mount_target.mt")

	if err := BreakCycles(s, &rules.Table{}); err != nil {
		t.Fatalf("BreakCycles() error = %v", err)
	}
	if _, ok := s.Edge("aws_efs_mount_target.mt", "aws_efs_file_system.fs"); !ok {
		t.Error("always-visible edge was suppressed")
	}
}

func TestBreakCycles_Deterministic(t *testing.T) {
	build := func() *graph.Store {
		s := graph.New()
		for _, id := range []string{"aws_instance.a", "aws_instance.b", "aws_instance.c"} {
			mustNode(t, s, graph.Node{ID: id})
		}
		mustEdge(t, s, "aws_instance.a", "aws_instance.b")
		mustEdge(t, s, "aws_instance.b", "aws_instance.c")
		mustEdge(t, s, "aws_instance.c", "aws_instance.a")
		return s
	}
	first := build()
	second := build()
	if err := BreakCycles(first, &rules.Table{}); err != nil {
		t.Fatal(err)
	}
	if err := BreakCycles(second, &rules.Table{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(edgeKeys(first), edgeKeys(second)) {
		t.Errorf("cycle breaking not deterministic: %v vs %v", edgeKeys(first), edgeKeys(second))
	}
}

func edgeKeys(s *graph.Store) []string {
	var keys []string
	for _, e := range s.Edges() {
		keys = append(keys, e.From+">"+e.To)
	}
	return keys
}

func TestSortNodes_BucketOrder(t *testing.T) {
	s := graph.New()
	for _, id := range []string{
		"aws_instance.web",
		"aws_lb.elb",
		"aws_vpc.main",
		"aws_group.users",
	} {
		mustNode(t, s, graph.Node{ID: id})
	}
	if n, _ := s.Node("aws_lb.elb"); n != nil {
		n.Consolidated = true
	}

	table := &rules.Table{
		OuterNodes: []string{"aws_group.users"},
		EdgeNodes:  []string{"aws_lb"},
		GroupNodes: []string{"aws_vpc"},
	}
	if err := SortNodes(s, table); err != nil {
		t.Fatalf("SortNodes() error = %v", err)
	}

	want := []string{"aws_group.users", "aws_lb.elb", "aws_vpc.main", "aws_instance.web"}
	if got := s.OrderedIDs(); !slices.Equal(got, want) {
		t.Errorf("OrderedIDs() = %v, want %v", got, want)
	}
}

func TestEnrich_FullRunDeterministic(t *testing.T) {
	build := func() *graph.Store {
		s := graph.New()
		for _, id := range []string{
			"aws_vpc.main",
			"aws_subnet.a",
			"aws_subnet.b",
			"aws_instance.web",
			"aws_db_instance.main",
			"aws_lb.front",
			"aws_lb_listener.http",
		} {
			mustNode(t, s, graph.Node{ID: id})
		}
		n, _ := s.Node("aws_subnet.a")
		n.Attrs["availability_zone"] = "eu-west-1a"
		n, _ = s.Node("aws_subnet.b")
		n.Attrs["availability_zone"] = "eu-west-1b"
		n, _ = s.Node("aws_instance.web")
		n.Attrs["count"] = 2

		mustEdge(t, s, "aws_subnet.a", "aws_vpc.main")
		mustEdge(t, s, "aws_subnet.b", "aws_vpc.main")
		mustEdge(t, s, "aws_instance.web", "aws_subnet.a")
		mustEdge(t, s, "aws_instance.web", "aws_db_instance.main")
		mustEdge(t, s, "aws_lb_listener.http", "aws_lb.front")
		return s
	}

	first := build()
	second := build()
	for _, s := range []*graph.Store{first, second} {
		if err := Enrich(context.Background(), s, Options{}); err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
	}

	if !slices.Equal(first.OrderedIDs(), second.OrderedIDs()) {
		t.Errorf("orderings differ:\n%v\n%v", first.OrderedIDs(), second.OrderedIDs())
	}
	if !slices.Equal(edgeKeys(first), edgeKeys(second)) {
		t.Errorf("edge sets differ:\n%v\n%v", edgeKeys(first), edgeKeys(second))
	}
	if err := first.Validate(); err != nil {
		t.Errorf("Validate() after enrichment: %v", err)
	}
}

func TestEnrich_ExpandsCountedInstances(t *testing.T) {
	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web", Attrs: graph.Attrs{"count": 2}})
	mustNode(t, s, graph.Node{ID: "aws_vpc.main"})
	mustEdge(t, s, "aws_instance.web", "aws_vpc.main")

	if err := Enrich(context.Background(), s, Options{}); err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !s.HasNode("aws_instance.web~1") || !s.HasNode("aws_instance.web~2") {
		t.Errorf("counted node not expanded, have %v", s.IDs())
	}
}

func TestEnrich_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := graph.New()
	mustNode(t, s, graph.Node{ID: "aws_instance.web"})
	if err := Enrich(ctx, s, Options{}); err == nil {
		t.Error("Enrich() with cancelled context should fail")
	}
}
