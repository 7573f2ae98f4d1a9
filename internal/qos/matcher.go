package qos

import (
	"path"
	"regexp"
	"strings"
)

// Incompatible is the result of Match: a non-empty slice means the pairing is
// incompatible, carrying every violated policy id (spec §4.8 returns the full list,
// not just the first).
type Incompatible []PolicyId

// Match implements C8: a pure function from the four QoS records (plus the two
// group-scoped policies already folded into Presentation) to the list of
// incompatible policy ids. Offered is the writer side, Requested is the reader side.
func Match(offered WriterQos, publisher PublisherQos, requested ReaderQos, subscriber SubscriberQos) Incompatible {
	var bad Incompatible

	if offered.Durability.Kind < requested.Durability.Kind {
		bad = append(bad, DurabilityPolicyID)
	}

	if publisher.Presentation.AccessScope < subscriber.Presentation.AccessScope ||
		publisher.Presentation.CoherentAccess != subscriber.Presentation.CoherentAccess ||
		publisher.Presentation.OrderedAccess != subscriber.Presentation.OrderedAccess {
		bad = append(bad, PresentationPolicyID)
	}

	// requested.Deadline.Period == 0 means the reader asks for no deadline at
	// all, satisfied by anything. Otherwise an infinite offered period (0)
	// can never satisfy a finite request, same as offered > requested.
	if requested.Deadline.Period > 0 &&
		(offered.Deadline.Period == 0 || offered.Deadline.Period > requested.Deadline.Period) {
		bad = append(bad, DeadlinePolicyID)
	}

	if offered.LatencyBudget.Duration > requested.LatencyBudget.Duration {
		bad = append(bad, LatencyBudgetPolicyID)
	}

	if offered.Ownership.Kind != requested.Ownership.Kind {
		bad = append(bad, OwnershipPolicyID)
	}

	if offered.Liveliness.Kind < requested.Liveliness.Kind ||
		offered.Liveliness.LeaseDuration > requested.Liveliness.LeaseDuration {
		bad = append(bad, LivelinessPolicyID)
	}

	if offered.Reliability.Kind < requested.Reliability.Kind {
		bad = append(bad, ReliabilityPolicyID)
	}

	if offered.DestinationOrder.Kind < requested.DestinationOrder.Kind {
		bad = append(bad, DestinationOrderPolicyID)
	}

	if !representationCompatible(offered.Representation, requested.Representation) {
		bad = append(bad, DataRepresentationPolicyID)
	}

	return bad
}

// representationCompatible implements the DATA_REPRESENTATION rule: offered must
// appear in requested's list; an empty requested list means XCDR1 only.
func representationCompatible(offered, requested DataRepresentation) bool {
	wants := requested.Value
	if len(wants) == 0 {
		wants = []RepresentationId{XCDR1BE, XCDR1LE}
	}
	offers := offered.Value
	if len(offers) == 0 {
		offers = []RepresentationId{XCDR1BE, XCDR1LE}
	}
	for _, o := range offers {
		for _, w := range wants {
			if o == w {
				return true
			}
		}
	}
	return false
}

// PartitionsMatch implements the candidacy rule of §4.8: matched if the sets share a
// literal name, or any glob on either side matches any name on the other side. Globs
// use the shell-style alphabet (* ? [class]) translated to regexp, same semantics as
// DDS-RTPS partition matching.
func PartitionsMatch(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true // both default partition ""
	}
	an, bn := normalizePartitions(a), normalizePartitions(b)
	for _, x := range an {
		for _, y := range bn {
			if globMatch(x, y) || globMatch(y, x) {
				return true
			}
		}
	}
	return false
}

func normalizePartitions(p []string) []string {
	if len(p) == 0 {
		return []string{""}
	}
	return p
}

// globMatch reports whether pattern (which may contain * ? [..]) matches name.
// Equal literal strings always match without compiling a regexp.
func globMatch(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return false
	}
	re, err := globToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	// path.Match's grammar matches the RTPS partition spec closely enough
	// (*, ?, [class]) but doesn't give us a reusable *Regexp, so we hand-translate.
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '^', '$', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '[':
			j := strings.IndexByte(pattern[i:], ']')
			if j < 0 {
				b.WriteString("\\[")
				continue
			}
			b.WriteString(pattern[i : i+j+1])
			i += j
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// validateGlob reports path.Match's verdict for pattern and name; no code or
// test in this module calls it.
func validateGlob(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}
