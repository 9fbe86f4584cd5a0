package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

func TestCreateGroup(t *testing.T) {
	db := newTestDB(t)
	h := NewGroupHandler(db, nil)
	alice := createUser(t, db, "Alice")

	c, rec := newCtx(t, http.MethodPost, "/groups",
		`{"name":"Family Circle","description":"monthly pot","contribution":250,"frequency":"monthly","max_members":10}`,
		alice.ID)
	if err := h.CreateGroup(c); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: expected 201, got %d", rec.Code)
	}

	var group models.Group
	if err := json.Unmarshal(rec.Body.Bytes(), &group); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if group.Name != "Family Circle" || group.Contribution == nil || *group.Contribution != 250 {
		t.Errorf("unexpected group: %+v", group)
	}

	var membership models.Membership
	if err := db.Where("user_id = ? AND group_id = ?", alice.ID, group.ID).First(&membership).Error; err != nil {
		t.Fatalf("expected creator membership: %v", err)
	}
	if membership.Role != models.RoleAdmin {
		t.Errorf("creator role: expected admin, got %s", membership.Role)
	}
}

func TestCreateGroupRequiresName(t *testing.T) {
	db := newTestDB(t)
	h := NewGroupHandler(db, nil)
	alice := createUser(t, db, "Alice")

	c, _ := newCtx(t, http.MethodPost, "/groups", `{"description":"no name"}`, alice.ID)
	err := h.CreateGroup(c)
	if got := httpStatus(t, err); got != http.StatusBadRequest {
		t.Errorf("status: expected 400, got %d", got)
	}
}

func TestListGroups(t *testing.T) {
	db := newTestDB(t)
	h := NewGroupHandler(db, nil)
	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")

	createGroup(t, db, alice, nil)
	createGroup(t, db, alice, nil)
	createGroup(t, db, bob, nil)

	c, rec := newCtx(t, http.MethodGet, "/groups", "", alice.ID)
	if err := h.ListGroups(c); err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}

	var groups []models.Group
	if err := json.Unmarshal(rec.Body.Bytes(), &groups); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("groups: expected 2, got %d", len(groups))
	}

	// A user with no memberships gets an empty list, not null.
	carl := createUser(t, db, "Carl")
	c, rec = newCtx(t, http.MethodGet, "/groups", "", carl.ID)
	if err := h.ListGroups(c); err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if rec.Body.String() != "[]\n" {
		t.Errorf("expected empty array body, got %q", rec.Body.String())
	}
}

func TestGetGroup(t *testing.T) {
	db := newTestDB(t)
	h := NewGroupHandler(db, nil)
	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")
	outsider := createUser(t, db, "Eve")
	group := createGroup(t, db, alice, nil)
	enroll(t, db, bob, group, models.RoleMember)

	t.Run("member sees roster with user projections", func(t *testing.T) {
		c, rec := newCtx(t, http.MethodGet, "/groups/:id", "", bob.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		if err := h.GetGroup(c); err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}

		var got models.Group
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(got.Memberships) != 2 {
			t.Fatalf("memberships: expected 2, got %d", len(got.Memberships))
		}
		for _, m := range got.Memberships {
			if m.User.ID == 0 || m.User.Name == "" {
				t.Errorf("membership %d missing user projection", m.ID)
			}
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodGet, "/groups/:id", "", outsider.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		err := h.GetGroup(c)
		if got := httpStatus(t, err); got != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", got)
		}
	})

	t.Run("absent group is 404 before authorization", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodGet, "/groups/:id", "", outsider.ID)
		c.SetParamNames("id")
		c.SetParamValues("99999")
		err := h.GetGroup(c)
		if got := httpStatus(t, err); got != http.StatusNotFound {
			t.Errorf("status: expected 404, got %d", got)
		}
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodGet, "/groups/:id", "", alice.ID)
		c.SetParamNames("id")
		c.SetParamValues("not-a-number")
		err := h.GetGroup(c)
		if got := httpStatus(t, err); got != http.StatusBadRequest {
			t.Errorf("status: expected 400, got %d", got)
		}
	})
}

func TestUpdateGroup(t *testing.T) {
	db := newTestDB(t)
	h := NewGroupHandler(db, nil)
	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")
	group := createGroup(t, db, alice, floatPtr(50))
	enroll(t, db, bob, group, models.RoleMember)

	t.Run("member role is forbidden and the record stays unchanged", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodPut, "/groups/:id", `{"name":"Hijacked"}`, bob.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		err := h.UpdateGroup(c)
		if got := httpStatus(t, err); got != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", got)
		}

		var unchanged models.Group
		if err := db.First(&unchanged, group.ID).Error; err != nil {
			t.Fatalf("failed to reload group: %v", err)
		}
		if unchanged.Name != group.Name {
			t.Errorf("name changed despite 403: %q", unchanged.Name)
		}
	})

	t.Run("admin overwrites only the provided fields", func(t *testing.T) {
		c, rec := newCtx(t, http.MethodPut, "/groups/:id", `{"description":"updated","contribution":-5}`, alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		if err := h.UpdateGroup(c); err != nil {
			t.Fatalf("UpdateGroup failed: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}

		var got models.Group
		if err := db.First(&got, group.ID).Error; err != nil {
			t.Fatalf("failed to reload group: %v", err)
		}
		if got.Name != group.Name {
			t.Errorf("name should be untouched, got %q", got.Name)
		}
		if got.Description != "updated" {
			t.Errorf("description: expected %q, got %q", "updated", got.Description)
		}
		// Negative contributions are accepted verbatim.
		if got.Contribution == nil || *got.Contribution != -5 {
			t.Errorf("contribution: expected -5, got %v", got.Contribution)
		}
	})
}

func TestDeleteGroupCascades(t *testing.T) {
	db := newTestDB(t)
	gh := NewGroupHandler(db, nil)
	ch := NewCycleHandler(db)
	alice := createUser(t, db, "Alice")
	bob := createUser(t, db, "Bob")
	group := createGroup(t, db, alice, nil)
	enroll(t, db, bob, group, models.RoleMember)

	// Open a cycle so there are payments to cascade onto.
	c, _ := newCtx(t, http.MethodPost, "/groups/:id/cycles", `{"cycle_index":1}`, alice.ID)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(group.ID))
	if err := ch.CreateCycle(c); err != nil {
		t.Fatalf("CreateCycle failed: %v", err)
	}

	t.Run("non-admin cannot delete", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodDelete, "/groups/:id", "", bob.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		err := gh.DeleteGroup(c)
		if got := httpStatus(t, err); got != http.StatusForbidden {
			t.Errorf("status: expected 403, got %d", got)
		}
	})

	t.Run("admin delete removes cycles, payments and memberships", func(t *testing.T) {
		c, _ := newCtx(t, http.MethodDelete, "/groups/:id", "", alice.ID)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(group.ID))
		if err := gh.DeleteGroup(c); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}

		var groups, memberships, cycles, payments int64
		db.Model(&models.Group{}).Where("id = ?", group.ID).Count(&groups)
		db.Model(&models.Membership{}).Where("group_id = ?", group.ID).Count(&memberships)
		db.Model(&models.Cycle{}).Where("group_id = ?", group.ID).Count(&cycles)
		db.Model(&models.Payment{}).Count(&payments)

		if groups != 0 {
			t.Errorf("groups: expected 0 rows after delete, got %d", groups)
		}
		if memberships != 0 {
			t.Errorf("memberships: expected 0 rows after delete, got %d", memberships)
		}
		if cycles != 0 {
			t.Errorf("cycles: expected 0 rows after delete, got %d", cycles)
		}
		if payments != 0 {
			t.Errorf("payments: expected 0 rows after delete, got %d", payments)
		}
	})
}
