package contract

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// Object types for composite keys, also usable as 'objectType' in CouchDB selectors.
const (
	roleObjectType            = "Role"            // Attributes: role, identity
	productObjectType         = "Product"         // Attributes: padded id
	productRevisionObjectType = "ProductRevision" // Attributes: padded id, padded revision
	priceObjectType           = "Price"           // Attributes: member, padded product id
	orderObjectType           = "Order"           // Attributes: padded id
	shipmentObjectType        = "Shipment"        // Attributes: padded id
	credentialObjectType      = "Credential"      // Attributes: holder
	auditObjectType           = "AuditEvent"      // Attributes: padded sequence
	counterObjectType         = "Counter"         // Attributes: counter name
)

// Counter names.
const (
	productCounter  = "product"
	orderCounter    = "order"
	shipmentCounter = "shipment"
	auditCounter    = "audit"
)

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxDescriptorLength  = 1024
	maxIdentityLength    = 4096 // Base64 client IDs carry the full subject and issuer DNs
	maxParticipants      = 50
	maxAuditPage         = 500
)

// padID renders numeric ids so that composite keys sort numerically.
func padID(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

func getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime().UTC(), nil
}

// getJSON loads and unmarshals the value stored under key. found is false when the key is absent.
func getJSON(ctx contractapi.TransactionContextInterface, key string, out interface{}) (bool, error) {
	raw, err := ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("ledger error reading '%s': %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal value for '%s': %w", key, err)
	}
	return true, nil
}

func putJSON(ctx contractapi.TransactionContextInterface, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for '%s': %w", key, err)
	}
	if err := ctx.GetStub().PutState(key, raw); err != nil {
		return fmt.Errorf("failed to save '%s': %w", key, err)
	}
	return nil
}

func counterKey(ctx contractapi.TransactionContextInterface, name string) (string, error) {
	key, err := ctx.GetStub().CreateCompositeKey(counterObjectType, []string{name})
	if err != nil {
		return "", fmt.Errorf("failed to create counter key for '%s': %w", name, err)
	}
	return key, nil
}

// peekCounter returns the value the next call to nextCounter would allocate, without writing.
func peekCounter(ctx contractapi.TransactionContextInterface, name string) (uint64, error) {
	key, err := counterKey(ctx, name)
	if err != nil {
		return 0, err
	}
	raw, err := ctx.GetStub().GetState(key)
	if err != nil {
		return 0, fmt.Errorf("ledger error reading counter '%s': %w", name, err)
	}
	if raw == nil {
		return 1, nil
	}
	last, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter '%s' is corrupt: %w", name, err)
	}
	return last + 1, nil
}

// nextCounter allocates the next value of a monotonic counter. Values are never reused.
// Call it only once every validation of the surrounding operation has passed.
func nextCounter(ctx contractapi.TransactionContextInterface, name string) (uint64, error) {
	next, err := peekCounter(ctx, name)
	if err != nil {
		return 0, err
	}
	key, err := counterKey(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := ctx.GetStub().PutState(key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, fmt.Errorf("failed to advance counter '%s': %w", name, err)
	}
	return next, nil
}

// --- Validation Helper Functions ---

func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, field)
	}
	if len(input) > max {
		return fmt.Errorf("%w: %s exceeds max length %d", ErrInvalidInput, field, max)
	}
	return nil
}

// x509IDPrefix opens every Fabric client ID; "eDUwOTo6" is the same prefix base64 encoded,
// which is the form cid.ClientIdentity.GetID hands out.
const (
	x509IDPrefix       = "x509::"
	x509IDBase64Prefix = "eDUwOTo6"
)

// canonicalIdentity maps both spellings of a Fabric client ID onto the plain
// "x509::<subject>::<issuer>" form. Every identity stored or compared goes through it.
func canonicalIdentity(id string) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case strings.HasPrefix(id, x509IDPrefix):
		return id, nil
	case strings.HasPrefix(id, x509IDBase64Prefix):
		decoded, err := base64.StdEncoding.DecodeString(id)
		if err != nil {
			return "", fmt.Errorf("client ID '%s' is not valid base64: %v", id, err)
		}
		return string(decoded), nil
	default:
		return "", fmt.Errorf("'%s' is not an X.509 client ID", id)
	}
}

// normaliseIdentity validates an identity argument and returns its canonical form.
func normaliseIdentity(id, field string) (string, error) {
	if err := validateRequiredString(id, field, maxIdentityLength); err != nil {
		return "", err
	}
	canonical, err := canonicalIdentity(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
	}
	return canonical, nil
}

// normaliseParticipants checks a participant list is a non-empty ordered set of client IDs
// and returns it in canonical form. Duplicates are detected after canonicalisation.
func normaliseParticipants(ids []string, field string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s must list at least one identity", ErrInvalidInput, field)
	}
	if len(ids) > maxParticipants {
		return nil, fmt.Errorf("%w: %s has %d items, exceeding maximum of %d", ErrInvalidInput, field, len(ids), maxParticipants)
	}
	canonical := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		c, err := normaliseIdentity(id, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("%w: %s lists '%s' more than once", ErrInvalidInput, field, c)
		}
		seen[c] = true
		canonical = append(canonical, c)
	}
	return canonical, nil
}
