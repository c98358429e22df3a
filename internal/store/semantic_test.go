package store

import "testing"

func TestSemanticStore(t *testing.T) {
	db := setupTestDB(t)
	semantic := NewSemanticStore(db)

	t.Run("new triple starts with access count 1", func(t *testing.T) {
		if err := semantic.Upsert("lead_1", "prefers", "email", 0.5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := semantic.Query("lead_1", "prefers", "email")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 triple, got %d", len(got))
		}
		if got[0].AccessCount != 1 {
			t.Fatalf("expected access count 1, got %d", got[0].AccessCount)
		}
		if got[0].Weight != 0.5 {
			t.Fatalf("expected weight 0.5, got %f", got[0].Weight)
		}
	})

	t.Run("re-upsert keeps max weight and increments access", func(t *testing.T) {
		if err := semantic.Upsert("lead_1", "prefers", "email", 0.3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := semantic.Query("lead_1", "prefers", "email")
		if got[0].Weight != 0.5 {
			t.Fatalf("expected weight to stay 0.5, got %f", got[0].Weight)
		}
		if got[0].AccessCount != 2 {
			t.Fatalf("expected access count 2, got %d", got[0].AccessCount)
		}

		if err := semantic.Upsert("lead_1", "prefers", "email", 0.9); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ = semantic.Query("lead_1", "prefers", "email")
		if got[0].Weight != 0.9 {
			t.Fatalf("expected weight raised to 0.9, got %f", got[0].Weight)
		}
		if got[0].AccessCount != 3 {
			t.Fatalf("expected access count 3, got %d", got[0].AccessCount)
		}
	})

	t.Run("query filters are conjunctive and empty matches all", func(t *testing.T) {
		if err := semantic.Upsert("lead_1", "in_industry", "SaaS", 0.4); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := semantic.Upsert("lead_2", "prefers", "sms", 0.6); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		bySubject, err := semantic.Query("lead_1", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(bySubject) != 2 {
			t.Fatalf("expected 2 triples for lead_1, got %d", len(bySubject))
		}

		all, err := semantic.Query("", "", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 triples total, got %d", len(all))
		}
		// Ranked by weight descending
		if all[0].Weight < all[len(all)-1].Weight {
			t.Fatal("expected descending weight order")
		}

		none, err := semantic.Query("lead_1", "prefers", "sms")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no match, got %d", len(none))
		}
	})

	t.Run("query does not touch access counters", func(t *testing.T) {
		before, _ := semantic.Query("lead_2", "prefers", "sms")
		again, _ := semantic.Query("lead_2", "prefers", "sms")
		if before[0].AccessCount != again[0].AccessCount {
			t.Fatalf("expected stable access count, got %d then %d", before[0].AccessCount, again[0].AccessCount)
		}
	})

	t.Run("CountForSubject", func(t *testing.T) {
		n, err := semantic.CountForSubject("lead_1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 facts for lead_1, got %d", n)
		}
	})
}
