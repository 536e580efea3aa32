package storage

import (
	"encoding/json"
	"strings"
	"testing"
)

func policyResources(t *testing.T, raw string) []string {
	t.Helper()
	var policy bucketPolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		t.Fatalf("policy does not parse: %v", err)
	}
	var out []string
	for _, st := range policy.Statement {
		out = append(out, st.Resource...)
	}
	return out
}

func TestUpsertObjectGrantKeepsSiblingGrants(t *testing.T) {
	withA, err := upsertObjectGrant("", "docs", "objA", true)
	if err != nil {
		t.Fatalf("granting objA: %v", err)
	}

	// Publishing a second object must not revoke the first.
	withBoth, err := upsertObjectGrant(withA, "docs", "objB", true)
	if err != nil {
		t.Fatalf("granting objB: %v", err)
	}
	resources := policyResources(t, withBoth)
	if len(resources) != 2 {
		t.Fatalf("expected two grants, got %v", resources)
	}
	for _, want := range []string{"arn:aws:s3:::docs/objA", "arn:aws:s3:::docs/objB"} {
		found := false
		for _, r := range resources {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing grant %s in %v", want, resources)
		}
	}
}

func TestUpsertObjectGrantRemovesOnlyTargetGrant(t *testing.T) {
	withA, _ := upsertObjectGrant("", "docs", "objA", true)
	withBoth, _ := upsertObjectGrant(withA, "docs", "objB", true)

	onlyB, err := upsertObjectGrant(withBoth, "docs", "objA", false)
	if err != nil {
		t.Fatalf("revoking objA: %v", err)
	}
	resources := policyResources(t, onlyB)
	if len(resources) != 1 || resources[0] != "arn:aws:s3:::docs/objB" {
		t.Fatalf("expected only objB's grant, got %v", resources)
	}
}

func TestUpsertObjectGrantEmptiesPolicyWhenLastGrantGoes(t *testing.T) {
	withA, _ := upsertObjectGrant("", "docs", "objA", true)

	empty, err := upsertObjectGrant(withA, "docs", "objA", false)
	if err != nil {
		t.Fatalf("revoking objA: %v", err)
	}
	if empty != "" {
		t.Fatalf("expected empty policy, got %q", empty)
	}
}

func TestUpsertObjectGrantIsIdempotent(t *testing.T) {
	once, _ := upsertObjectGrant("", "docs", "objA", true)
	twice, err := upsertObjectGrant(once, "docs", "objA", true)
	if err != nil {
		t.Fatalf("re-granting objA: %v", err)
	}
	if len(policyResources(t, twice)) != 1 {
		t.Fatalf("expected a single grant after re-publish")
	}

	if out, err := upsertObjectGrant("", "docs", "objA", false); err != nil || out != "" {
		t.Fatalf("revoking from empty policy: %q, %v", out, err)
	}
}

func TestUpsertObjectGrantPreservesForeignStatements(t *testing.T) {
	foreign := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:ListBucket"],"Resource":["arn:aws:s3:::docs"]}]}`

	withA, err := upsertObjectGrant(foreign, "docs", "objA", true)
	if err != nil {
		t.Fatalf("granting objA: %v", err)
	}
	if !strings.Contains(withA, "s3:ListBucket") {
		t.Fatalf("foreign statement dropped: %s", withA)
	}

	back, err := upsertObjectGrant(withA, "docs", "objA", false)
	if err != nil {
		t.Fatalf("revoking objA: %v", err)
	}
	if !strings.Contains(back, "s3:ListBucket") {
		t.Fatalf("foreign statement dropped on revoke: %s", back)
	}
}
