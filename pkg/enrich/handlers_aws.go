package enrich

import (
	"fmt"
	"slices"
	"strings"

	"github.com/planviz/planviz/pkg/graph"
	"github.com/planviz/planviz/pkg/rules"
)

// SharedServicesGroup is the synthetic container collecting shared-service
// nodes that sit outside any VPC.
const SharedServicesGroup = "aws_group.shared_services"

// AvailabilityZoneBase is the logical identifier availability-zone group
// nodes are suffixed from.
const AvailabilityZoneBase = "aws_az.availability_zone"

// attrZone is the attribute the subnet handler writes and the
// security-group handler reads.
const attrZone = "_az"

// DefaultRegistry returns the registry with all built-in special-resource
// handlers. The rule table's binding order decides execution order; see
// [ApplyHandlers].
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("cloudfront", handleCloudfront)
	r.Register("subnet_azs", handleSubnetAZs)
	r.Register("autoscaling", handleAutoscaling)
	r.Register("efs", handleEFS)
	r.Register("db_subnet", handleDBSubnet)
	r.Register("security_group", handleSecurityGroup)
	r.Register("load_balancer", handleLoadBalancer)
	r.Register("vpc_endpoint", handleVPCEndpoint)
	r.Register("shared_group", handleSharedGroup)
	r.Register("random_string", handleRandomString)
	return r
}

func provenance(handler string) string { return "handler:" + handler }

// handleCloudfront connects each distribution to the origins its attributes
// reference (load balancers, buckets, API gateways) before any grouping
// happens, since distributions sit at the cloud edge and their origin
// configuration is the only record of those links.
func handleCloudfront(s *graph.Store, t *rules.Table, matched []string) error {
	originTypes := []string{"aws_lb", "aws_alb", "aws_s3_bucket", "aws_api_gateway", "aws_instance"}
	for _, id := range matched {
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		text := flattenAttrs(n.Attrs)
		for _, candidate := range s.IDs() {
			if candidate == id || !rules.MatchesAny(candidate, originTypes) {
				continue
			}
			if strings.Contains(text, candidate) || strings.Contains(text, graph.NameOf(candidate)) {
				if err := s.AnnotateEdge(provenance("cloudfront"), graph.Edge{From: id, To: candidate}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// handleSubnetAZs synthesizes one availability-zone group node per distinct
// availability_zone attribute value and re-parents subnets beneath it:
// vpc -> az -> subnet. Direct vpc/subnet edges are removed once the chain is
// in place. Each subnet records its zone node so later handlers can bind to
// it.
func handleSubnetAZs(s *graph.Store, t *rules.Table, matched []string) error {
	const tag = "subnet_azs"

	var zones []string
	bySubnet := make(map[string]string) // subnet ID -> zone name
	for _, id := range matched {
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		zone, _ := n.Attrs["availability_zone"].(string)
		if zone == "" {
			continue
		}
		bySubnet[id] = zone
		if !slices.Contains(zones, zone) {
			zones = append(zones, zone)
		}
	}
	slices.Sort(zones)

	zoneNode := make(map[string]string, len(zones))
	for i, zone := range zones {
		azID := graph.InstanceID(AvailabilityZoneBase, i+1)
		zoneNode[zone] = azID
		if err := s.AnnotateNode(provenance(tag), graph.Node{
			ID:    azID,
			Group: true,
			Attrs: graph.Attrs{"zone": zone},
		}); err != nil {
			return err
		}
	}

	for subnet, zone := range bySubnet {
		azID := zoneNode[zone]
		if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: azID, To: subnet}); err != nil {
			return err
		}
		n, _ := s.Node(subnet)
		n.Attrs[attrZone] = azID

		// Splice the zone between the VPC and the subnet.
		for _, vpc := range neighbors(s, subnet, "aws_vpc") {
			if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: vpc, To: azID}); err != nil {
				return err
			}
			s.RemoveEdge(subnet, vpc)
			s.RemoveEdge(vpc, subnet)
		}
	}
	return nil
}

// handleAutoscaling propagates a scaling target's minimum capacity onto the
// services it scales, so multi-instance expansion fans them out.
func handleAutoscaling(s *graph.Store, t *rules.Table, matched []string) error {
	for _, id := range matched {
		n, ok := s.Node(id)
		if !ok {
			continue
		}
		n.Group = true
		capacity := intAttr(n.Attrs, "min_capacity")
		if capacity < 2 {
			capacity = 2
		}
		for _, svc := range append(neighbors(s, id, "aws_ecs"), neighbors(s, id, "aws_instance")...) {
			sn, ok := s.Node(svc)
			if !ok {
				continue
			}
			if sn.Cardinality() < capacity {
				sn.Attrs[graph.AttrCount] = capacity
			}
		}
	}
	return nil
}

// handleEFS attaches mount targets to their file system with always-visible
// edges, so the storage association survives cycle suppression.
func handleEFS(s *graph.Store, t *rules.Table, matched []string) error {
	for _, fs := range matched {
		for _, id := range s.IDs() {
			if !strings.HasPrefix(id, "aws_efs_mount_target") {
				continue
			}
			if err := s.AnnotateEdge(provenance("efs"), graph.Edge{From: id, To: fs, AlwaysVisible: true}); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleDBSubnet dissolves database subnet groups: the databases referencing
// a group move under the group's subnets, and the group node itself
// disappears (it is plumbing, not a drawable resource).
func handleDBSubnet(s *graph.Store, t *rules.Table, matched []string) error {
	const tag = "db_subnet"
	for _, id := range matched {
		if !strings.HasPrefix(id, "aws_db_subnet_group") {
			continue
		}
		subnets := childrenWithPrefix(s, id, "aws_subnet")
		var databases []string
		for _, p := range s.Parents(id) {
			if strings.HasPrefix(p, "aws_rds") || strings.HasPrefix(p, "aws_db_instance") {
				databases = append(databases, p)
			}
		}
		for _, db := range databases {
			for _, subnet := range subnets {
				if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: subnet, To: db}); err != nil {
					return err
				}
			}
		}
		s.RemoveNode(id)
		s.Annotate(graph.Annotation{Rule: provenance(tag), Op: graph.OpRemoveNode, Node: id})
	}
	return nil
}

// handleSecurityGroup converts member-to-group reference edges into
// containment: the group becomes a container holding its members, attached
// beneath each member's subnet. Runs after the subnet handler so the zone
// assignment it wrote is available.
func handleSecurityGroup(s *graph.Store, t *rules.Table, matched []string) error {
	const tag = "security_group"
	for _, sg := range matched {
		n, ok := s.Node(sg)
		if !ok {
			continue
		}
		n.Group = true
		for _, member := range s.Parents(sg) {
			if t.IsGroup(member) {
				continue
			}
			s.RemoveEdge(member, sg)
			if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: sg, To: member}); err != nil {
				return err
			}
			for _, subnet := range childrenWithPrefix(s, member, "aws_subnet") {
				s.RemoveEdge(member, subnet)
				if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: subnet, To: sg}); err != nil {
					return err
				}
				if sub, ok := s.Node(subnet); ok {
					if az, ok := sub.Attrs[attrZone]; ok {
						n.Attrs[attrZone] = az
					}
				}
			}
		}
	}
	return nil
}

// handleLoadBalancer marks load-balancer edges always-visible and links the
// balancer to services whose attributes reference it (target-group
// attachments collapse into the consolidated balancer before this runs).
func handleLoadBalancer(s *graph.Store, t *rules.Table, matched []string) error {
	serviceTypes := []string{"aws_ecs", "aws_instance", "aws_lambda"}
	for _, lb := range matched {
		for _, to := range s.Children(lb) {
			if e, ok := s.Edge(lb, to); ok {
				e.AlwaysVisible = true
			}
		}
		for _, from := range s.Parents(lb) {
			if e, ok := s.Edge(from, lb); ok {
				e.AlwaysVisible = true
			}
		}
		name := graph.NameOf(lb)
		for _, candidate := range s.IDs() {
			if candidate == lb || !rules.MatchesAny(candidate, serviceTypes) {
				continue
			}
			cn, _ := s.Node(candidate)
			if strings.Contains(flattenAttrs(cn.Attrs), name) {
				if err := s.AnnotateEdge(provenance("load_balancer"), graph.Edge{From: lb, To: candidate, AlwaysVisible: true}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// handleVPCEndpoint parents each endpoint under its VPC.
func handleVPCEndpoint(s *graph.Store, t *rules.Table, matched []string) error {
	for _, ep := range matched {
		for _, vpc := range neighbors(s, ep, "aws_vpc.") {
			s.RemoveEdge(ep, vpc)
			if err := s.AnnotateEdge(provenance("vpc_endpoint"), graph.Edge{From: vpc, To: ep}); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleSharedGroup collects shared-service nodes that are not attached to
// any container into a synthetic shared-services group so they render in one
// block instead of scattering across the diagram.
func handleSharedGroup(s *graph.Store, t *rules.Table, matched []string) error {
	const tag = "shared_group"
	var shared []string
	for _, id := range matched {
		if !t.IsShared(id) {
			continue
		}
		if hasGroupParent(s, t, id) {
			continue
		}
		shared = append(shared, id)
	}
	if len(shared) == 0 {
		return nil
	}
	if err := s.AnnotateNode(provenance(tag), graph.Node{ID: SharedServicesGroup, Group: true}); err != nil {
		return err
	}
	for _, id := range shared {
		if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: SharedServicesGroup, To: id}); err != nil {
			return err
		}
	}
	return nil
}

// handleRandomString deletes generated-suffix helper nodes, bridging their
// parents directly to their children.
func handleRandomString(s *graph.Store, t *rules.Table, matched []string) error {
	const tag = "random_string"
	for _, id := range matched {
		parents := s.Parents(id)
		children := s.Children(id)
		for _, p := range parents {
			for _, c := range children {
				if p == c {
					continue
				}
				if err := s.AnnotateEdge(provenance(tag), graph.Edge{From: p, To: c}); err != nil {
					return err
				}
			}
		}
		s.RemoveNode(id)
		s.Annotate(graph.Annotation{Rule: provenance(tag), Op: graph.OpRemoveNode, Node: id})
	}
	return nil
}

// neighbors returns nodes adjacent to id (either direction) whose
// identifier has the given prefix, sorted and deduplicated.
func neighbors(s *graph.Store, id, prefix string) []string {
	var out []string
	for _, c := range s.Children(id) {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	for _, p := range s.Parents(id) {
		if strings.HasPrefix(p, prefix) && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func childrenWithPrefix(s *graph.Store, id, prefix string) []string {
	var out []string
	for _, c := range s.Children(id) {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func hasGroupParent(s *graph.Store, t *rules.Table, id string) bool {
	for _, p := range s.Parents(id) {
		if t.IsGroup(p) {
			return true
		}
		if n, ok := s.Node(p); ok && n.Group {
			return true
		}
	}
	return false
}

func intAttr(attrs graph.Attrs, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

// flattenAttrs renders an attribute mapping as one searchable string.
func flattenAttrs(attrs graph.Attrs) string {
	var b strings.Builder
	for _, k := range slices.Sorted(slices.Values(keysOf(attrs))) {
		fmt.Fprintf(&b, "%s=%v\n", k, attrs[k])
	}
	return b.String()
}

func keysOf(attrs graph.Attrs) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	return keys
}
