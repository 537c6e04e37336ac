package contract

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/oklog/ulid/v2"
)

var auditLogger = flogging.MustGetLogger("bklogistics.audit")

// recordEvent appends an entry to the audit log and publishes the same payload as the
// transaction's chaincode event. It must be the last write of an operation: every
// operation emits at most one event, which matches Fabric's one-event-per-transaction rule.
func recordEvent(ctx contractapi.TransactionContextInterface, name, actor string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal '%s' event payload: %w", name, err)
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	seq, err := nextCounter(ctx, auditCounter)
	if err != nil {
		return err
	}
	txID := ctx.GetStub().GetTxID()
	eventID, err := deterministicULID(now.UnixMilli(), txID, seq)
	if err != nil {
		return fmt.Errorf("failed to derive event id for '%s': %w", name, err)
	}

	entry := model.AuditEvent{
		ObjectType: auditObjectType,
		EventID:    eventID,
		Sequence:   seq,
		Name:       name,
		TxID:       txID,
		Actor:      actor,
		Timestamp:  now,
		Payload:    string(payloadBytes),
	}
	key, err := ctx.GetStub().CreateCompositeKey(auditObjectType, []string{padID(seq)})
	if err != nil {
		return fmt.Errorf("failed to create audit key: %w", err)
	}
	if err := putJSON(ctx, key, entry); err != nil {
		return err
	}
	if err := ctx.GetStub().SetEvent(name, payloadBytes); err != nil {
		return fmt.Errorf("failed to set event '%s': %w", name, err)
	}
	auditLogger.Debugf("Audit event #%d '%s' recorded (tx %s).", seq, name, txID)
	return nil
}

// deterministicULID builds a ULID whose entropy comes from the tx id, so every
// endorsing peer derives the same identifier for the same event.
func deterministicULID(ms int64, txID string, seq uint64) (string, error) {
	sum := sha256.Sum256([]byte(txID + "/" + strconv.FormatUint(seq, 10)))
	id, err := ulid.New(uint64(ms), bytes.NewReader(sum[:]))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// AuditTrail reads the audit log starting at fromSequence, returning at most limit entries.
func AuditTrail(ctx contractapi.TransactionContextInterface, fromSequence uint64, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	if fromSequence == 0 {
		fromSequence = 1
	}
	next, err := peekCounter(ctx, auditCounter)
	if err != nil {
		return nil, err
	}

	events := []*model.AuditEvent{}
	for seq := fromSequence; seq < next && len(events) < limit; seq++ {
		key, err := ctx.GetStub().CreateCompositeKey(auditObjectType, []string{padID(seq)})
		if err != nil {
			return nil, fmt.Errorf("failed to create audit key: %w", err)
		}
		var entry model.AuditEvent
		found, err := getJSON(ctx, key, &entry)
		if err != nil {
			return nil, err
		}
		if !found {
			auditLogger.Warningf("Audit entry #%d missing from ledger. Skipping.", seq)
			continue
		}
		events = append(events, &entry)
	}
	return events, nil
}
