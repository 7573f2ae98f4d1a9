package qos

import (
	"testing"
	"time"
)

func TestMatchCompatibleDefaults(t *testing.T) {
	w := DefaultWriterQos()
	r := DefaultReaderQos()
	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	if len(bad) != 0 {
		t.Fatalf("Match() = %v, want empty", bad)
	}
}

func TestMatchDurabilityIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Durability.Kind = Volatile
	r := DefaultReaderQos()
	r.Durability.Kind = TransientLocal

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	if len(bad) != 1 || bad[0] != DurabilityPolicyID {
		t.Fatalf("Match() = %v, want [DURABILITY_QOS_POLICY_ID]", bad)
	}
}

func TestMatchReliabilityIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Reliability.Kind = BestEffort
	r := DefaultReaderQos()
	r.Reliability.Kind = Reliable

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == ReliabilityPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain RELIABILITY_QOS_POLICY_ID", bad)
	}
}

func TestMatchDataRepresentationEmptyRequestedMeansXCDR1(t *testing.T) {
	w := DefaultWriterQos()
	w.Representation.Value = []RepresentationId{XCDR2LE}
	r := DefaultReaderQos()
	r.Representation.Value = nil

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == DataRepresentationPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain DATA_REPRESENTATION_QOS_POLICY_ID", bad)
	}
}

func TestMatchDeadlineInfiniteOfferedIncompatibleWithFiniteRequested(t *testing.T) {
	w := DefaultWriterQos()
	w.Deadline.Period = 0 // infinite
	r := DefaultReaderQos()
	r.Deadline.Period = time.Second

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == DeadlinePolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain DEADLINE_QOS_POLICY_ID for infinite offered vs finite requested", bad)
	}
}

func TestMatchDeadlineFiniteOfferedSatisfiesInfiniteRequested(t *testing.T) {
	w := DefaultWriterQos()
	w.Deadline.Period = time.Second
	r := DefaultReaderQos()
	r.Deadline.Period = 0 // infinite, accepts anything

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	if len(bad) != 0 {
		t.Fatalf("Match() = %v, want empty (requested deadline is infinite)", bad)
	}
}

func TestMatchDeadlineOfferedLongerThanRequestedIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Deadline.Period = 2 * time.Second
	r := DefaultReaderQos()
	r.Deadline.Period = time.Second

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == DeadlinePolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain DEADLINE_QOS_POLICY_ID", bad)
	}
}

func TestMatchDeadlineOfferedShorterThanRequestedCompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Deadline.Period = time.Second
	r := DefaultReaderQos()
	r.Deadline.Period = 2 * time.Second

	if bad := Match(w, PublisherQos{}, r, SubscriberQos{}); len(bad) != 0 {
		t.Fatalf("Match() = %v, want empty", bad)
	}
}

func TestMatchLatencyBudgetIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.LatencyBudget.Duration = 2 * time.Second
	r := DefaultReaderQos()
	r.LatencyBudget.Duration = time.Second

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == LatencyBudgetPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain LATENCY_BUDGET_QOS_POLICY_ID", bad)
	}
}

func TestMatchOwnershipMismatchIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Ownership.Kind = Exclusive
	r := DefaultReaderQos()
	r.Ownership.Kind = Shared

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == OwnershipPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain OWNERSHIP_QOS_POLICY_ID", bad)
	}
}

func TestMatchLivelinessWeakerKindIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Liveliness.Kind = Automatic
	r := DefaultReaderQos()
	r.Liveliness.Kind = ManualByTopic

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == LivelinessPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain LIVELINESS_QOS_POLICY_ID", bad)
	}
}

func TestMatchLivelinessLongerLeaseIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.Liveliness.LeaseDuration = 2 * time.Second
	r := DefaultReaderQos()
	r.Liveliness.LeaseDuration = time.Second

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == LivelinessPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain LIVELINESS_QOS_POLICY_ID", bad)
	}
}

func TestMatchDestinationOrderWeakerIncompatible(t *testing.T) {
	w := DefaultWriterQos()
	w.DestinationOrder.Kind = ByReceptionTimestamp
	r := DefaultReaderQos()
	r.DestinationOrder.Kind = BySourceTimestamp

	bad := Match(w, PublisherQos{}, r, SubscriberQos{})
	found := false
	for _, id := range bad {
		if id == DestinationOrderPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Match() = %v, want to contain DESTINATION_ORDER_QOS_POLICY_ID", bad)
	}
}

func TestPartitionsMatchLiteralAndGlob(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want bool
	}{
		{"both-empty", nil, nil, true},
		{"shared-literal", []string{"A", "B"}, []string{"B", "C"}, true},
		{"no-overlap", []string{"A"}, []string{"B"}, false},
		{"glob-star", []string{"prod-*"}, []string{"prod-east"}, true},
		{"glob-question", []string{"cell?"}, []string{"cell9"}, true},
		{"glob-class", []string{"room[12]"}, []string{"room2"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PartitionsMatch(tc.a, tc.b); got != tc.want {
				t.Errorf("PartitionsMatch(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
