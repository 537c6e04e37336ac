package contract

import (
	"errors"
	"fmt"
	"sort"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var aclLogger = flogging.MustGetLogger("bklogistics.accesscontrol")

// AccessControl owns the role relation and is the single authorization predicate every
// mutating operation goes through. It never caches: each check reads the world state.
type AccessControl struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessControl creates a new instance of AccessControl bound to the transaction context.
func NewAccessControl(ctx contractapi.TransactionContextInterface) *AccessControl {
	return &AccessControl{Ctx: ctx}
}

func (ac *AccessControl) createRoleCompositeKey(role model.Role, identity string) (string, error) {
	return ac.Ctx.GetStub().CreateCompositeKey(roleObjectType, []string{string(role), identity})
}

// CallerID resolves the transactor to its canonical client ID, so the caller compares equal
// to identities that were granted roles in either spelling.
func (ac *AccessControl) CallerID() (string, error) {
	clientIdentity := ac.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	canonical, err := canonicalIdentity(id)
	if err != nil {
		return "", fmt.Errorf("%w: caller: %v", ErrUnauthorized, err)
	}
	return canonical, nil
}

// HasRole reads the role relation live. identity may be in either client ID spelling.
func (ac *AccessControl) HasRole(role model.Role, identity string) (bool, error) {
	if !model.ValidRoles[role] {
		return false, fmt.Errorf("%w: unknown role '%s'", ErrInvalidInput, role)
	}
	identity, err := normaliseIdentity(identity, "identity")
	if err != nil {
		return false, err
	}
	key, err := ac.createRoleCompositeKey(role, identity)
	if err != nil {
		return false, fmt.Errorf("failed to create role key for '%s': %w", identity, err)
	}
	raw, err := ac.Ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("ledger error checking role '%s' for '%s': %w", role, identity, err)
	}
	return raw != nil, nil
}

// RequireRole is the authorization predicate: it resolves the caller and fails with
// ErrUnauthorized unless the caller currently holds role. Admin does not imply other roles.
func (ac *AccessControl) RequireRole(role model.Role) (string, error) {
	callerID, err := ac.CallerID()
	if err != nil {
		return "", err
	}
	has, err := ac.HasRole(role, callerID)
	if err != nil {
		return "", err
	}
	if !has {
		return "", fmt.Errorf("%w: identity '%s' does not have required role '%s'", ErrUnauthorized, callerID, role)
	}
	aclLogger.Debugf("Role check passed for role '%s' for user '%s'.", role, callerID)
	return callerID, nil
}

// AnyAdminExists checks if any admin assignment is present on the ledger.
func (ac *AccessControl) AnyAdminExists() (bool, error) {
	iterator, err := ac.Ctx.GetStub().GetStateByPartialCompositeKey(roleObjectType, []string{string(model.RoleAdmin)})
	if err != nil {
		return false, fmt.Errorf("failed to query admin records: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

// Bootstrap makes the caller the ledger admin. It only succeeds while no admin exists.
func (ac *AccessControl) Bootstrap() (string, error) {
	exists, err := ac.AnyAdminExists()
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.New("ledger already bootstrapped: an admin exists")
	}
	callerID, err := ac.CallerID()
	if err != nil {
		return "", err
	}
	if err := ac.writeAssignment(model.RoleAdmin, callerID, callerID); err != nil {
		return "", err
	}
	if err := recordEvent(ac.Ctx, model.EventRoleGranted, callerID, model.RoleChangedPayload{Role: model.RoleAdmin, Identity: callerID}); err != nil {
		return "", err
	}
	aclLogger.Infof("Ledger bootstrapped. Identity '%s' is now admin.", callerID)
	return callerID, nil
}

// Grant gives target a member or carrier role. Granting a held role is a no-op
// success: granted is false and no event is recorded, so the relation stays a set.
func (ac *AccessControl) Grant(role model.Role, target string) (granted bool, err error) {
	if role != model.RoleMember && role != model.RoleCarrier {
		return false, fmt.Errorf("%w: role '%s' cannot be granted", ErrInvalidInput, role)
	}
	callerID, err := ac.RequireRole(model.RoleAdmin)
	if err != nil {
		return false, err
	}
	target, err = normaliseIdentity(target, "identity")
	if err != nil {
		return false, err
	}
	has, err := ac.HasRole(role, target)
	if err != nil {
		return false, err
	}
	if has {
		aclLogger.Debugf("Role '%s' already assigned to '%s'. No action needed.", role, target)
		return false, nil
	}
	if err := ac.writeAssignment(role, target, callerID); err != nil {
		return false, err
	}
	if err := recordEvent(ac.Ctx, model.EventRoleGranted, callerID, model.RoleChangedPayload{Role: role, Identity: target}); err != nil {
		return false, err
	}
	aclLogger.Infof("Role '%s' assigned to '%s' by admin '%s'.", role, target, callerID)
	return true, nil
}

// Revoke removes a member or carrier role from target. Admin is not revocable.
func (ac *AccessControl) Revoke(role model.Role, target string) (revoked bool, err error) {
	if role != model.RoleMember && role != model.RoleCarrier {
		return false, fmt.Errorf("%w: role '%s' cannot be revoked", ErrInvalidInput, role)
	}
	callerID, err := ac.RequireRole(model.RoleAdmin)
	if err != nil {
		return false, err
	}
	target, err = normaliseIdentity(target, "identity")
	if err != nil {
		return false, err
	}
	has, err := ac.HasRole(role, target)
	if err != nil {
		return false, err
	}
	if !has {
		aclLogger.Debugf("Role '%s' not held by '%s'. No action taken for removal.", role, target)
		return false, nil
	}
	if err := ac.deleteAssignment(role, target); err != nil {
		return false, err
	}
	if err := recordEvent(ac.Ctx, model.EventRoleRevoked, callerID, model.RoleChangedPayload{Role: role, Identity: target}); err != nil {
		return false, err
	}
	aclLogger.Infof("Role '%s' removed from '%s' by admin '%s'.", role, target, callerID)
	return true, nil
}

// Renounce lets a holder drop its own member or carrier role.
func (ac *AccessControl) Renounce(role model.Role, target string) error {
	if role != model.RoleMember && role != model.RoleCarrier {
		return fmt.Errorf("%w: role '%s' cannot be renounced", ErrInvalidInput, role)
	}
	callerID, err := ac.CallerID()
	if err != nil {
		return err
	}
	if canonical, err := canonicalIdentity(target); err != nil || canonical != callerID {
		return fmt.Errorf("%w: caller '%s' can only renounce its own roles, not those of '%s'", ErrNotHolder, callerID, target)
	}
	has, err := ac.HasRole(role, callerID)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: caller '%s' does not hold role '%s'", ErrNotHolder, callerID, role)
	}
	if err := ac.deleteAssignment(role, callerID); err != nil {
		return err
	}
	if err := recordEvent(ac.Ctx, model.EventRoleRevoked, callerID, model.RoleChangedPayload{Role: role, Identity: callerID}); err != nil {
		return err
	}
	aclLogger.Infof("Identity '%s' renounced role '%s'.", callerID, role)
	return nil
}

// RoleHolders lists every identity holding role, in key order.
func (ac *AccessControl) RoleHolders(role model.Role) ([]string, error) {
	if !model.ValidRoles[role] {
		return nil, fmt.Errorf("%w: unknown role '%s'", ErrInvalidInput, role)
	}
	iterator, err := ac.Ctx.GetStub().GetStateByPartialCompositeKey(roleObjectType, []string{string(role)})
	if err != nil {
		return nil, fmt.Errorf("failed to query holders of role '%s': %w", role, err)
	}
	defer iterator.Close()

	holders := []string{}
	for iterator.HasNext() {
		kv, iterErr := iterator.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to iterate holders of role '%s': %w", role, iterErr)
		}
		_, attrs, splitErr := ac.Ctx.GetStub().SplitCompositeKey(kv.Key)
		if splitErr != nil || len(attrs) != 2 {
			aclLogger.Warningf("Skipping malformed role key '%s': %v", kv.Key, splitErr)
			continue
		}
		holders = append(holders, attrs[1])
	}
	return holders, nil
}

// RolesOf lists the roles identity currently holds.
func (ac *AccessControl) RolesOf(identity string) ([]model.Role, error) {
	roles := []model.Role{}
	for role := range model.ValidRoles {
		has, err := ac.HasRole(role, identity)
		if err != nil {
			return nil, err
		}
		if has {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

func (ac *AccessControl) writeAssignment(role model.Role, identity, grantedBy string) error {
	key, err := ac.createRoleCompositeKey(role, identity)
	if err != nil {
		return fmt.Errorf("failed to create role key for '%s': %w", identity, err)
	}
	now, err := getCurrentTxTimestamp(ac.Ctx)
	if err != nil {
		return err
	}
	return putJSON(ac.Ctx, key, model.RoleAssignment{
		ObjectType: roleObjectType,
		Role:       role,
		Identity:   identity,
		GrantedBy:  grantedBy,
		GrantedAt:  now,
	})
}

func (ac *AccessControl) deleteAssignment(role model.Role, identity string) error {
	key, err := ac.createRoleCompositeKey(role, identity)
	if err != nil {
		return fmt.Errorf("failed to create role key for '%s': %w", identity, err)
	}
	if err := ac.Ctx.GetStub().DelState(key); err != nil {
		return fmt.Errorf("failed to delete role '%s' for '%s': %w", role, identity, err)
	}
	return nil
}
