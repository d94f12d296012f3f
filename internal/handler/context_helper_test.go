package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

func TestParentScope(t *testing.T) {
	cases := []struct {
		query  string
		scope  models.ParentScope
		parent string
	}{
		{query: "/folders", scope: models.ParentAny},
		{query: "/folders?parentFolderId=", scope: models.ParentRoot},
		{query: "/folders?parentFolderId=null", scope: models.ParentRoot},
		{query: "/folders?parentFolderId=NULL", scope: models.ParentRoot},
		{query: "/folders?parentFolderId=f-1", scope: models.ParentExact, parent: "f-1"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, tc.query, nil)
			scope, parent := parentScope(c)
			assert.Equal(t, tc.scope, scope)
			assert.Equal(t, tc.parent, parent)
		})
	}
}

func TestQueryBoolDefaultTrue(t *testing.T) {
	for query, want := range map[string]bool{
		"/folders":                    true,
		"/folders?includeFiles=true":  true,
		"/folders?includeFiles=0":     true,
		"/folders?includeFiles=false": false,
		"/folders?includeFiles=FALSE": false,
	} {
		c, _ := newTestContext(http.MethodGet, query, nil)
		assert.Equal(t, want, queryBoolDefaultTrue(c, "includeFiles"), query)
	}
}

func TestActorOr(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/", nil)
	assert.Nil(t, actorOr(nil, c))

	withClaims(c, "user-9", models.RoleUser)
	assert.Equal(t, "user-9", *actorOr(nil, c))
	blank := " "
	assert.Equal(t, "user-9", *actorOr(&blank, c))
	explicit := "user-1"
	assert.Equal(t, "user-1", *actorOr(&explicit, c))
}

func TestVerificationStatusQuery(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/documents?verificationStatus=verified", nil)
	status, ok := verificationStatusQuery(c)
	assert.True(t, ok)
	assert.Equal(t, models.VerificationApproved, status)

	c, rec := newTestContext(http.MethodGet, "/documents?verificationStatus=done", nil)
	_, ok = verificationStatusQuery(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.InvalidVerificationStatusMessage, decodeEnvelope(t, rec).Error.Message)
}
