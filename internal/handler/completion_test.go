package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/habitd/internal/model"
)

func TestCompletionCreateDefaultsToToday(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("POST", "/completions", alice.Token, map[string]any{"habit_id": id})
	expectStatus(t, rec, http.StatusCreated)

	var c model.Completion
	decodeBody(t, rec, &c)
	if c.Date != "2025-02-21" {
		t.Errorf("date = %q, want 2025-02-21", c.Date)
	}
	if c.Completed {
		t.Error("completed should default to false")
	}
	if c.UserID != alice.ID {
		t.Errorf("user_id = %q, want %q", c.UserID, alice.ID)
	}

	if got := api.hub.types(alice.ID); got[len(got)-1] != "completion_created" {
		t.Errorf("last broadcast = %v, want completion_created", got)
	}
}

func TestCompletionCreateDuplicate(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	body := map[string]any{"habit_id": id, "date": "2025-02-01", "completed": true}
	expectStatus(t, api.do("POST", "/completions", alice.Token, body), http.StatusCreated)
	expectDetail(t, api.do("POST", "/completions", alice.Token, body), http.StatusBadRequest)
}

func TestCompletionCreateValidation(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	id := api.createHabit(alice, "Read")

	expectDetail(t, api.do("POST", "/completions", alice.Token, map[string]any{}), http.StatusBadRequest)
	expectDetail(t, api.do("POST", "/completions", alice.Token, map[string]any{"habit_id": id, "date": "21/02/2025"}), http.StatusBadRequest)
	expectDetail(t, api.do("POST", "/completions", bob.Token, map[string]any{"habit_id": id}), http.StatusNotFound)
}

func TestCompletionUpdate(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("POST", "/completions", alice.Token, map[string]any{"habit_id": id})
	var c model.Completion
	decodeBody(t, rec, &c)

	expectDetail(t, api.do("PATCH", "/completions/"+c.ID, alice.Token, map[string]any{}), http.StatusBadRequest)
	expectDetail(t, api.do("PATCH", "/completions/"+c.ID, bob.Token, map[string]any{"completed": true}), http.StatusNotFound)

	rec = api.do("PATCH", "/completions/"+c.ID, alice.Token, map[string]any{"completed": true})
	expectStatus(t, rec, http.StatusOK)
	var updated model.Completion
	decodeBody(t, rec, &updated)
	if !updated.Completed || updated.ID != c.ID || updated.Date != c.Date {
		t.Errorf("updated = %+v, want same record completed", updated)
	}
}

func TestCompletionUpsertKeepsRecord(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	body := map[string]any{"habit_id": id, "date": "2025-02-10", "completed": true}
	rec := api.do("PUT", "/completions/upsert", alice.Token, body)
	expectStatus(t, rec, http.StatusOK)
	var first model.Completion
	decodeBody(t, rec, &first)

	body["completed"] = false
	rec = api.do("PUT", "/completions/upsert", alice.Token, body)
	expectStatus(t, rec, http.StatusOK)
	var second model.Completion
	decodeBody(t, rec, &second)

	if first.ID != second.ID {
		t.Errorf("upsert created a second record: %s != %s", first.ID, second.ID)
	}
	if second.Completed {
		t.Error("expected completed to be updated to false")
	}

	expectDetail(t, api.do("PUT", "/completions/upsert", alice.Token, map[string]any{"habit_id": id}), http.StatusBadRequest)
}

func TestCompletionListByHabitRange(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	for _, d := range []string{"2025-02-01", "2025-02-05", "2025-02-10"} {
		api.mark(alice, id, d, true)
	}

	rec := api.do("GET", "/habits/"+id+"/completions?from=2025-02-02&to=2025-02-10", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	var list []model.Completion
	decodeBody(t, rec, &list)
	if len(list) != 2 || list[0].Date != "2025-02-10" || list[1].Date != "2025-02-05" {
		t.Errorf("list = %+v, want 2025-02-10 then 2025-02-05", list)
	}

	expectDetail(t, api.do("GET", "/habits/"+id+"/completions?from=yesterday", alice.Token, nil), http.StatusBadRequest)
}

func TestCompletionDelete(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("POST", "/completions", alice.Token, map[string]any{"habit_id": id})
	var c model.Completion
	decodeBody(t, rec, &c)

	expectStatus(t, api.do("DELETE", "/completions/"+c.ID, alice.Token, nil), http.StatusNoContent)
	expectDetail(t, api.do("DELETE", "/completions/"+c.ID, alice.Token, nil), http.StatusNotFound)
}

func TestPrepareIsIdempotent(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	read := api.createHabit(alice, "Read")
	api.createHabit(alice, "Run")
	swim := api.createHabit(bob, "Swim")

	// An existing completed record for today must survive the sweep.
	api.mark(bob, swim, "2025-02-21", true)

	var result struct {
		Date    string `json:"date"`
		Created int64  `json:"created"`
	}
	rec := api.do("POST", "/completions/prepare_completions", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &result)
	if result.Date != "2025-02-21" || result.Created != 2 {
		t.Errorf("first run = %+v, want 2 created on 2025-02-21", result)
	}

	rec = api.do("POST", "/completions/prepare_completions", alice.Token, nil)
	decodeBody(t, rec, &result)
	if result.Created != 0 {
		t.Errorf("second run created %d, want 0", result.Created)
	}

	for _, tc := range []struct {
		user      testUser
		habitID   string
		completed bool
	}{
		{alice, read, false},
		{bob, swim, true},
	} {
		rec = api.do("GET", "/habits/"+tc.habitID+"/completions?from=2025-02-21&to=2025-02-21", tc.user.Token, nil)
		var list []model.Completion
		decodeBody(t, rec, &list)
		if len(list) != 1 {
			t.Fatalf("habit %s has %d records for today, want 1", tc.habitID, len(list))
		}
		if list[0].Completed != tc.completed {
			t.Errorf("habit %s completed = %v, want %v", tc.habitID, list[0].Completed, tc.completed)
		}
		if list[0].UserID != tc.user.ID {
			t.Errorf("habit %s user_id = %q, want %q", tc.habitID, list[0].UserID, tc.user.ID)
		}
	}
}
