package handler

import (
	"net/http"
	"testing"
)

func TestHabitCreate(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")

	rec := api.do("POST", "/habits", alice.Token, map[string]any{
		"name": "  Read  ", "color": "#00ff00", "start_date": "2025-01-01", "end_date": "2025-12-31",
	})
	expectStatus(t, rec, http.StatusCreated)

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["name"] != "Read" {
		t.Errorf("name = %v, want trimmed", body["name"])
	}
	if body["user_id"] != alice.ID {
		t.Errorf("user_id = %v, want %s", body["user_id"], alice.ID)
	}
	if body["color"] != "#00ff00" {
		t.Errorf("color = %v", body["color"])
	}

	if got := api.hub.types(alice.ID); len(got) != 1 || got[0] != "habit_created" {
		t.Errorf("broadcasts = %v, want [habit_created]", got)
	}
}

func TestHabitCreateValidation(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"description": "x"}},
		{"blank name", map[string]any{"name": "   "}},
		{"bad color", map[string]any{"name": "Read", "color": "green"}},
		{"bad date", map[string]any{"name": "Read", "start_date": "2025-13-01"}},
		{"start after end", map[string]any{"name": "Read", "start_date": "2025-02-01", "end_date": "2025-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectDetail(t, api.do("POST", "/habits", alice.Token, tt.body), http.StatusBadRequest)
		})
	}
}

func TestHabitOtherUserNotFound(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	id := api.createHabit(alice, "Read")

	expectDetail(t, api.do("GET", "/habits/"+id, bob.Token, nil), http.StatusNotFound)
	expectDetail(t, api.do("PATCH", "/habits/"+id, bob.Token, map[string]string{"name": "Mine"}), http.StatusNotFound)
	expectDetail(t, api.do("DELETE", "/habits/"+id, bob.Token, nil), http.StatusNotFound)
	expectDetail(t, api.do("GET", "/habits/"+id+"/completions", bob.Token, nil), http.StatusNotFound)

	expectStatus(t, api.do("GET", "/habits/"+id, alice.Token, nil), http.StatusOK)
}

func TestHabitUpdate(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("PATCH", "/habits/"+id, alice.Token, map[string]any{"description": "20 pages", "archived": true})
	expectStatus(t, rec, http.StatusOK)

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["description"] != "20 pages" || body["archived"] != true {
		t.Errorf("unexpected habit after update: %v", body)
	}
	if body["name"] != "Read" {
		t.Errorf("name = %v, want unchanged", body["name"])
	}
}

func TestHabitUpdateEmptyPatch(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("PATCH", "/habits/"+id, alice.Token, map[string]any{})
	if detail := expectDetail(t, rec, http.StatusBadRequest); detail != "No fields provided for update" {
		t.Errorf("detail = %q", detail)
	}
}

func TestHabitUpdateDateRangeAgainstExisting(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")

	rec := api.do("POST", "/habits", alice.Token, map[string]any{"name": "Read", "end_date": "2025-03-01"})
	expectStatus(t, rec, http.StatusCreated)
	var h struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &h)

	rec = api.do("PATCH", "/habits/"+h.ID, alice.Token, map[string]any{"start_date": "2025-04-01"})
	expectDetail(t, rec, http.StatusBadRequest)
}

func TestHabitListAndArchived(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	api.createHabit(alice, "Read")
	archived := api.createHabit(alice, "Run")
	api.createHabit(bob, "Swim")

	expectStatus(t, api.do("PATCH", "/habits/"+archived, alice.Token, map[string]any{"archived": true}), http.StatusOK)

	var list []map[string]any
	rec := api.do("GET", "/users/"+alice.ID+"/habits", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0]["name"] != "Read" {
		t.Errorf("list = %v, want only Read", list)
	}

	rec = api.do("GET", "/users/"+alice.ID+"/habits?include_archived=true", alice.Token, nil)
	decodeBody(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("len(list) = %d, want 2", len(list))
	}

	expectDetail(t, api.do("GET", "/users/"+alice.ID+"/habits", bob.Token, nil), http.StatusForbidden)
}

func TestHabitListEmptyIsArray(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")

	rec := api.do("GET", "/users/"+alice.ID+"/habits", alice.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHabitSort(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	a := api.createHabit(alice, "A")
	b := api.createHabit(alice, "B")
	c := api.createHabit(alice, "C")

	rec := api.do("PUT", "/habits/sort", alice.Token, map[string]any{"ids": []string{c, a, b}})
	expectStatus(t, rec, http.StatusOK)

	var list []struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &list)
	if len(list) != 3 || list[0].ID != c || list[1].ID != a || list[2].ID != b {
		t.Errorf("order = %v, want [C A B]", list)
	}

	expectDetail(t, api.do("PUT", "/habits/sort", alice.Token, map[string]any{"ids": []string{}}), http.StatusBadRequest)
}

func TestHabitDeleteCascades(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	rec := api.do("POST", "/completions", alice.Token, map[string]any{"habit_id": id, "completed": true})
	expectStatus(t, rec, http.StatusCreated)
	var c struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &c)

	expectStatus(t, api.do("DELETE", "/habits/"+id, alice.Token, nil), http.StatusNoContent)
	expectDetail(t, api.do("GET", "/habits/"+id, alice.Token, nil), http.StatusNotFound)
	expectDetail(t, api.do("GET", "/completions/"+c.ID, alice.Token, nil), http.StatusNotFound)
}

type streakBody struct {
	UserID  string `json:"user_id"`
	HabitID string `json:"habit_id"`
	Date    string `json:"date"`
	Streak  int    `json:"streak"`
}

func (a *testAPI) streak(u testUser, habitID string) streakBody {
	a.t.Helper()
	rec := a.do("GET", "/users/"+u.ID+"/habits/"+habitID+"/completion_streak", u.Token, nil)
	expectStatus(a.t, rec, http.StatusOK)
	var body streakBody
	decodeBody(a.t, rec, &body)
	return body
}

func (a *testAPI) mark(u testUser, habitID, date string, completed bool) {
	a.t.Helper()
	rec := a.do("PUT", "/completions/upsert", u.Token, map[string]any{
		"habit_id": habitID, "date": date, "completed": completed,
	})
	expectStatus(a.t, rec, http.StatusOK)
}

func TestHabitStreak(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	if got := api.streak(alice, id); got.Streak != 0 || got.Date != "2025-02-21" {
		t.Fatalf("fresh habit streak = %+v, want 0 on 2025-02-21", got)
	}

	api.mark(alice, id, "2025-02-21", true)
	api.mark(alice, id, "2025-02-20", true)
	api.mark(alice, id, "2025-02-19", false)
	api.mark(alice, id, "2025-02-18", true)

	got := api.streak(alice, id)
	if got.Streak != 2 {
		t.Errorf("streak = %d, want 2", got.Streak)
	}
	if got.UserID != alice.ID || got.HabitID != id {
		t.Errorf("unexpected ids in %+v", got)
	}
}

func TestHabitStreakNotCompletedToday(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	id := api.createHabit(alice, "Read")

	api.mark(alice, id, "2025-02-20", true)
	api.mark(alice, id, "2025-02-19", true)

	if got := api.streak(alice, id).Streak; got != 0 {
		t.Errorf("streak = %d, want 0", got)
	}
}

func TestHabitStreakAccess(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice@example.com")
	bob := api.signup("bob@example.com")
	id := api.createHabit(alice, "Read")

	path := "/users/" + alice.ID + "/habits/" + id + "/completion_streak"
	expectDetail(t, api.do("GET", path, bob.Token, nil), http.StatusForbidden)

	path = "/users/" + bob.ID + "/habits/" + id + "/completion_streak"
	expectDetail(t, api.do("GET", path, bob.Token, nil), http.StatusNotFound)
}
