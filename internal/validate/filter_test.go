package validate

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/grievance/internal/model"
)

func TestFilter_Screen(t *testing.T) {
	f := NewFilter(nil, nil, nil, nil)

	tests := []struct {
		text   string
		reason model.RejectReason
		rule   string
		desc   string
	}{
		{"test test test", model.ReasonNonGrievance, RuleSpamIndicator, "short test message"},
		{"hello, is anyone there", model.ReasonNonGrievance, RuleSpamIndicator, "greeting"},
		{"just checking the line", model.ReasonNonGrievance, RuleSpamIndicator, "phrase indicator"},
		{"this is about water", "", "", "hi inside this is not a greeting"},
		{"the test results from the hospital lab were lost by the staff", "", "", "long message with indicator"},
		{"water water water water problem", model.ReasonRepeated, RuleRepetition, "adjacent repeats"},
		{"road broken road damaged road", model.ReasonRepeated, RuleRepetition, "dominant token"},
		{"water supply", "", "", "too few tokens for repetition"},
		{"road is road, pipe is pipe, lamp is lamp, water problem in our ward since monday", "", "",
			"repeats separated by short words are not adjacent"},
		{"no no no no water in the tap", "", "", "short tokens never repeat"},
		{"I would like to know the weather tomorrow", model.ReasonNonGrievance, RuleMeaningful, "no grievance vocabulary"},
		{"मेरे घर के पास बहुत बड़ी समस्या है", "", "", "hindi marker"},
		{"pothole", "", "", "short text passes"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			v := f.Screen(tt.text)
			if tt.reason == "" {
				if !v.Accepted {
					t.Errorf("Expected %q accepted, got %+v", tt.text, v)
				}
				return
			}
			if v.Accepted || v.Reason != tt.reason || v.Rule != tt.rule {
				t.Errorf("Screen(%q) = %+v, want reason %q rule %q", tt.text, v, tt.reason, tt.rule)
			}
		})
	}
}

func TestFilter_RejectionErrors(t *testing.T) {
	f := NewFilter(nil, nil, nil, nil)

	err := f.Screen("test test test").Err()
	if !errors.Is(err, model.ErrSpamRejected) {
		t.Errorf("Expected ErrSpamRejected, got %v", err)
	}

	var rej *model.RejectionError
	if !errors.As(err, &rej) || rej.Reason != model.ReasonNonGrievance {
		t.Errorf("Expected non-grievance RejectionError, got %v", err)
	}

	if err := f.Screen("garbage not collected").Err(); err != nil {
		t.Errorf("Expected nil error for accepted verdict, got %v", err)
	}
}

func TestFilter_Jurisdiction(t *testing.T) {
	f := NewFilter(nil, nil, nil, nil)

	tests := []struct {
		location string
		accepted bool
		desc     string
	}{
		{"Mumbai, PIN 400001", false, "postal code outside range"},
		{"Mumbai", false, "unknown place"},
		{"Lucknow", true, "gazetteer place"},
		{"Lucknow, PIN 226001", true, "in-range postal code"},
		{"Agr", true, "short location not checked"},
		{"", true, "empty location not checked"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			v := f.CheckGrievance(model.Grievance{
				Description: "garbage not collected near station",
				Location:    tt.location,
			})
			if v.Accepted != tt.accepted {
				t.Fatalf("CheckGrievance(location=%q) = %+v, want accepted=%v", tt.location, v, tt.accepted)
			}
			if !tt.accepted {
				if v.Reason != model.ReasonJurisdiction {
					t.Errorf("Expected jurisdiction reason, got %q", v.Reason)
				}
				if !errors.Is(v.Err(), model.ErrOutOfJurisdiction) {
					t.Errorf("Expected ErrOutOfJurisdiction, got %v", v.Err())
				}
			}
		})
	}
}

func TestFilter_BulkSubmission(t *testing.T) {
	f := NewFilter(nil, nil, nil, nil)

	descriptions := []string{
		"no water supply in sector five since morning",
		"no water supply in sector five since evening",
		"no water supply in sector five since night",
	}

	for i, d := range descriptions {
		g := model.Grievance{CallerPhone: "9876543210", Description: d}
		v := f.Evaluate(d, g)
		if i < 2 && !v.Accepted {
			t.Fatalf("submission %d: expected accepted, got %+v", i, v)
		}
		if i == 2 && (v.Accepted || v.Reason != model.ReasonBulkSubmission) {
			t.Fatalf("submission %d: expected bulk rejection, got %+v", i, v)
		}
	}

	other := model.Grievance{CallerPhone: "9123456780", Description: descriptions[0]}
	if v := f.Evaluate(descriptions[0], other); !v.Accepted {
		t.Errorf("Expected a different phone to be unaffected, got %+v", v)
	}
}

func TestFilter_BulkIgnoresAnonymousAndDistinct(t *testing.T) {
	f := NewFilter(nil, nil, nil, nil)

	for i := 0; i < 4; i++ {
		d := "no water supply in sector five since morning"
		if v := f.Evaluate(d, model.Grievance{Description: d}); !v.Accepted {
			t.Fatalf("anonymous submission %d rejected: %+v", i, v)
		}
	}

	distinct := []string{
		"no water supply in sector five",
		"pothole near the school gate",
		"street light broken on main road",
	}
	for i, d := range distinct {
		g := model.Grievance{CallerPhone: "9000000001", Description: d}
		if v := f.Evaluate(d, g); !v.Accepted {
			t.Fatalf("distinct submission %d rejected: %+v", i, v)
		}
	}
}

func TestFilter_ScreenDoesNotTouchHistory(t *testing.T) {
	history := NewCacheHistory(time.Hour, 20)
	f := NewFilter(nil, nil, history, nil)

	for i := 0; i < 5; i++ {
		f.Screen("no water supply in sector five")
	}
	if n := history.Len("9876543210"); n != 0 {
		t.Errorf("Expected empty history after Screen, got %d entries", n)
	}
}

type recordingHistory struct {
	entries []string
}

func (r *recordingHistory) Append(phone, entry string) []string {
	r.entries = append(r.entries, entry)
	return append([]string(nil), r.entries...)
}

func TestFilter_BulkUsesDescriptionPrefix(t *testing.T) {
	history := &recordingHistory{}
	f := NewFilter(nil, nil, history, nil)

	desc := "the garbage has not been collected from our lane and the smell is unbearable now"
	f.Evaluate("My name is Asha. "+desc, model.Grievance{CallerPhone: "9876543210", Description: desc})

	if len(history.entries) != 1 {
		t.Fatalf("Expected one history entry, got %d", len(history.entries))
	}
	if history.entries[0] != desc[:50] {
		t.Errorf("Expected 50-character description prefix, got %q", history.entries[0])
	}
}

func TestCacheHistory_Cap(t *testing.T) {
	h := NewCacheHistory(time.Hour, 3)

	var window []string
	for _, e := range []string{"a", "b", "c", "d", "e"} {
		window = h.Append("p", e)
	}
	if strings.Join(window, ",") != "c,d,e" {
		t.Errorf("Expected last three entries, got %v", window)
	}
	if h.Len("p") != 3 {
		t.Errorf("Expected 3 retained entries, got %d", h.Len("p"))
	}
}

func TestCacheHistory_Expires(t *testing.T) {
	h := NewCacheHistory(50*time.Millisecond, 10)
	h.Append("p", "a")

	time.Sleep(100 * time.Millisecond)

	if n := h.Len("p"); n != 0 {
		t.Errorf("Expected expired history, got %d entries", n)
	}
}

func TestCacheHistory_Concurrent(t *testing.T) {
	h := NewCacheHistory(time.Hour, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Append("p", "entry")
			}
		}()
	}
	wg.Wait()

	if n := h.Len("p"); n != 500 {
		t.Errorf("Expected 500 entries, got %d", n)
	}
}
