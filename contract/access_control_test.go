package contract

import (
	"encoding/json"
	"testing"

	"bklogistics/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLedgerOnlyOnce(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.cc.InitLedger(l.as(adminID)))
	assert.Equal(t, []string{model.EventRoleGranted}, l.drainEvents())

	err := l.cc.InitLedger(l.as(malloryID))
	require.Error(t, err)

	isAdmin, err := l.cc.HasRole(l.as(malloryID), "admin", malloryID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	holders, err := l.cc.GetRoleHolders(l.as(malloryID), "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, []string{adminID}, holders)
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	l := bootstrap(t)

	err := l.cc.AddMember(l.as(aliceID), malloryID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	has, err := l.cc.HasRole(l.as(malloryID), "member", malloryID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	l := bootstrap(t)

	require.NoError(t, l.cc.AddMember(l.as(adminID), malloryID))
	assert.Equal(t, []string{model.EventRoleGranted}, l.drainEvents())
	before := l.snapshot()

	require.NoError(t, l.cc.AddMember(l.as(adminID), malloryID))
	assert.Empty(t, l.drainEvents())
	assert.Equal(t, before, l.snapshot())

	holders, err := l.cc.GetRoleHolders(l.as(adminID), "member")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{aliceID, bobID, malloryID}, holders)
}

func TestAddMemberRejectsMalformedIdentity(t *testing.T) {
	l := bootstrap(t)

	for _, id := range []string{"", "   ", notAnX509} {
		err := l.cc.AddMember(l.as(adminID), id)
		assert.ErrorIs(t, err, ErrInvalidInput, "identity %q", id)
	}
}

func TestRemoveMember(t *testing.T) {
	l := bootstrap(t)

	require.NoError(t, l.cc.RemoveMember(l.as(adminID), aliceID))
	assert.Equal(t, []string{model.EventRoleRevoked}, l.drainEvents())

	has, err := l.cc.HasRole(l.as(adminID), "member", aliceID)
	require.NoError(t, err)
	assert.False(t, has)

	// Removing a non-holder succeeds without an event.
	require.NoError(t, l.cc.RemoveMember(l.as(adminID), aliceID))
	assert.Empty(t, l.drainEvents())

	assert.ErrorIs(t, l.cc.RemoveCarrier(l.as(bobID), carlID), ErrUnauthorized)
}

func TestRenounceOwnRole(t *testing.T) {
	l := bootstrap(t)

	require.NoError(t, l.cc.RenounceCarrier(l.as(carlID), carlID))
	assert.Equal(t, []string{model.EventRoleRevoked}, l.drainEvents())

	has, err := l.cc.HasRole(l.as(carlID), "carrier", carlID)
	require.NoError(t, err)
	assert.False(t, has)

	err = l.cc.RenounceCarrier(l.as(carlID), carlID)
	assert.ErrorIs(t, err, ErrNotHolder)
}

func TestRenounceSomeoneElsesRoleFails(t *testing.T) {
	l := bootstrap(t)
	before := l.snapshot()

	err := l.cc.RenounceMember(l.as(bobID), aliceID)
	assert.ErrorIs(t, err, ErrNotHolder)

	// Even an admin cannot renounce on someone's behalf.
	err = l.cc.RenounceMember(l.as(adminID), aliceID)
	assert.ErrorIs(t, err, ErrNotHolder)

	assert.Equal(t, before, l.snapshot())
	has, err := l.cc.HasRole(l.as(aliceID), "member", aliceID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAdminDoesNotImplyOtherRoles(t *testing.T) {
	l := bootstrap(t)
	productID := l.addProduct("Pallet of bricks")

	err := l.cc.ModifyPrice(l.as(adminID), productID, 100, 1, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)

	roles, err := l.cc.GetMyRoles(l.as(adminID))
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleAdmin}, roles)
}

func TestGetMyRolesListsEveryHeldRole(t *testing.T) {
	l := bootstrap(t)
	require.NoError(t, l.cc.AddCarrier(l.as(adminID), aliceID))

	roles, err := l.cc.GetMyRoles(l.as(aliceID))
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RoleCarrier, model.RoleMember}, roles)

	roles, err = l.cc.GetMyRoles(l.as(malloryID))
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NotNil(t, roles)
}

func TestHasRoleUnknownRole(t *testing.T) {
	l := bootstrap(t)

	_, err := l.cc.HasRole(l.as(adminID), "auditor", aliceID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoleEventsAreAudited(t *testing.T) {
	l := bootstrap(t)

	trail, err := l.cc.GetAuditTrail(l.as(adminID), 1, 0)
	require.NoError(t, err)
	require.Len(t, trail, 5)

	var first model.RoleChangedPayload
	require.NoError(t, json.Unmarshal([]byte(trail[0].Payload), &first))
	assert.Equal(t, model.RoleAdmin, first.Role)
	assert.Equal(t, adminID, first.Identity)

	var last model.RoleChangedPayload
	require.NoError(t, json.Unmarshal([]byte(trail[4].Payload), &last))
	assert.Equal(t, model.RoleCarrier, last.Role)
	assert.Equal(t, danaID, last.Identity)
}

func TestIdentitySpellingsAreOneIdentity(t *testing.T) {
	l := bootstrap(t)
	const erinID = "x509::CN=erin,OU=client::CN=ca"
	productID := l.addProduct("Plywood")

	// Granted in the plain form, erin acts through the base64 form her certificate yields.
	require.NoError(t, l.cc.AddMember(l.as(adminID), erinID))
	require.NoError(t, l.cc.ModifyPrice(l.as(encodedID(erinID)), productID, 10, 1, 0))

	quote, err := l.cc.GetPrice(l.as(adminID), encodedID(erinID), productID, 1)
	require.NoError(t, err)
	assert.Equal(t, erinID, quote.Member)

	// Re-granting in the other spelling is the same role assignment.
	l.drainEvents()
	require.NoError(t, l.cc.AddMember(l.as(adminID), encodedID(erinID)))
	assert.Empty(t, l.drainEvents())

	holders, err := l.cc.GetRoleHolders(l.as(adminID), "member")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{aliceID, bobID, erinID}, holders)

	has, err := l.cc.HasRole(l.as(adminID), "member", encodedID(erinID))
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, l.cc.RenounceMember(l.as(erinID), encodedID(erinID)))
	has, err = l.cc.HasRole(l.as(adminID), "member", erinID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMalformedIdentities(t *testing.T) {
	l := bootstrap(t)

	// Right prefix, broken base64.
	assert.ErrorIs(t, l.cc.AddMember(l.as(adminID), "eDUwOTo6!!"), ErrInvalidInput)
	// Truncated base64.
	assert.ErrorIs(t, l.cc.AddMember(l.as(adminID), encodedID(aliceID)[:21]), ErrInvalidInput)

	_, err := l.cc.GetMyRoles(l.as(notAnX509))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
