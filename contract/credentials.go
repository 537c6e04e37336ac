package contract

import (
	"fmt"

	"bklogistics/model"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var credentialLogger = flogging.MustGetLogger("bklogistics.credentials")

// credentialNamespace scopes the name-based credential UUIDs.
var credentialNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:bklogistics:credential"))

// Credentials issues soulbound credentials. A credential is keyed by its holder,
// so there is no way to rebind it to another identity.
type Credentials struct {
	Ctx contractapi.TransactionContextInterface
	acl *AccessControl
}

// NewCredentials binds a credential issuer to the transaction context.
func NewCredentials(ctx contractapi.TransactionContextInterface) *Credentials {
	return &Credentials{Ctx: ctx, acl: NewAccessControl(ctx)}
}

func (c *Credentials) credentialKey(holder string) (string, error) {
	return c.Ctx.GetStub().CreateCompositeKey(credentialObjectType, []string{holder})
}

// Issue binds a new credential to holder. The holder must hold member or carrier.
func (c *Credentials) Issue(holder string) (*model.Credential, error) {
	callerID, err := c.acl.RequireRole(model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	holder, err = normaliseIdentity(holder, "identity")
	if err != nil {
		return nil, err
	}

	attested := []model.Role{}
	for _, role := range []model.Role{model.RoleMember, model.RoleCarrier} {
		has, err := c.acl.HasRole(role, holder)
		if err != nil {
			return nil, err
		}
		if has {
			attested = append(attested, role)
		}
	}
	if len(attested) == 0 {
		return nil, fmt.Errorf("%w: '%s' holds neither member nor carrier role", ErrNotEligible, holder)
	}

	key, err := c.credentialKey(holder)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential key for '%s': %w", holder, err)
	}
	var existing model.Credential
	found, err := getJSON(c.Ctx, key, &existing)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("%w: '%s' already holds credential '%s'", ErrAlreadyIssued, holder, existing.ID)
	}
	now, err := getCurrentTxTimestamp(c.Ctx)
	if err != nil {
		return nil, err
	}

	credential := &model.Credential{
		ObjectType: credentialObjectType,
		ID:         uuid.NewSHA1(credentialNamespace, []byte(holder+"|"+c.Ctx.GetStub().GetTxID())).String(),
		Holder:     holder,
		Roles:      attested,
		IssuedBy:   callerID,
		IssuedAt:   now,
	}
	if err := putJSON(c.Ctx, key, credential); err != nil {
		return nil, err
	}
	payload := model.CredentialPayload{Identity: holder, CredentialID: credential.ID}
	if err := recordEvent(c.Ctx, model.EventCredentialIssued, callerID, payload); err != nil {
		return nil, err
	}
	credentialLogger.Infof("Credential '%s' issued to '%s' by admin '%s'.", credential.ID, holder, callerID)
	return credential, nil
}

// Revoke clears the holder's credential. Allowed for admins and for the holder itself.
func (c *Credentials) Revoke(holder string) error {
	callerID, err := c.acl.CallerID()
	if err != nil {
		return err
	}
	holder, err = normaliseIdentity(holder, "identity")
	if err != nil {
		return err
	}
	if callerID != holder {
		isAdmin, err := c.acl.HasRole(model.RoleAdmin, callerID)
		if err != nil {
			return err
		}
		if !isAdmin {
			return fmt.Errorf("%w: only an admin or the holder can revoke the credential of '%s'", ErrUnauthorized, holder)
		}
	}

	credential, err := c.Get(holder)
	if err != nil {
		return err
	}
	key, err := c.credentialKey(holder)
	if err != nil {
		return fmt.Errorf("failed to create credential key for '%s': %w", holder, err)
	}
	if err := c.Ctx.GetStub().DelState(key); err != nil {
		return fmt.Errorf("failed to delete credential of '%s': %w", holder, err)
	}
	payload := model.CredentialPayload{Identity: holder, CredentialID: credential.ID}
	if err := recordEvent(c.Ctx, model.EventCredentialRevoked, callerID, payload); err != nil {
		return err
	}
	credentialLogger.Infof("Credential '%s' of '%s' revoked by '%s'.", credential.ID, holder, callerID)
	return nil
}

// Get returns the active credential of holder, or ErrNotFound.
func (c *Credentials) Get(holder string) (*model.Credential, error) {
	holder, err := normaliseIdentity(holder, "identity")
	if err != nil {
		return nil, err
	}
	key, err := c.credentialKey(holder)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential key for '%s': %w", holder, err)
	}
	var credential model.Credential
	found, err := getJSON(c.Ctx, key, &credential)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: '%s' holds no credential", ErrNotFound, holder)
	}
	if credential.Roles == nil {
		credential.Roles = []model.Role{}
	}
	return &credential, nil
}
