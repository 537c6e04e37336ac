package contract

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	adminID   = "x509::CN=admin,OU=admin,O=BKLogistics::CN=ca.bklogistics.example"
	aliceID   = "x509::CN=alice,OU=client,O=Org1::CN=ca.org1.example"
	bobID     = "x509::CN=bob,OU=client,O=Org2::CN=ca.org2.example"
	carlID    = "x509::CN=carl,OU=client,O=FastFreight::CN=ca.freight.example"
	danaID    = "x509::CN=dana,OU=client,O=SlowBoat::CN=ca.freight.example"
	malloryID = "x509::CN=mallory,OU=client,O=Nowhere::CN=ca.nowhere.example"
	notAnX509 = "alice@example.com"
)

// encodedID is the base64 spelling of a plain client ID, the form cid hands to chaincode.
func encodedID(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

// fakeIdentity satisfies cid.ClientIdentity for a fixed caller. Plain ids are reported
// base64 encoded, like a real peer does.
type fakeIdentity struct {
	id    string
	mspID string
}

func (f *fakeIdentity) GetID() (string, error) {
	if strings.HasPrefix(f.id, "x509::") {
		return encodedID(f.id), nil
	}
	return f.id, nil
}
func (f *fakeIdentity) GetMSPID() (string, error) { return f.mspID, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeIdentity) AssertAttributeValue(name, value string) error {
	return fmt.Errorf("attribute '%s' not present", name)
}
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) { return nil, nil }

// testLedger drives the contract against an in-memory world state. Every call to as
// opens a fresh transaction with its own id and a strictly later timestamp.
type testLedger struct {
	t     *testing.T
	stub  *shimtest.MockStub
	cc    *SupplyChainContract
	txSeq int
	epoch time.Time
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	return &testLedger{
		t:     t,
		stub:  shimtest.NewMockStub("bklogistics", nil),
		cc:    &SupplyChainContract{},
		epoch: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (l *testLedger) as(callerID string) *contractapi.TransactionContext {
	l.txSeq++
	l.drainEvents()
	l.stub.MockTransactionStart(fmt.Sprintf("tx-%04d", l.txSeq))
	l.stub.TxTimestamp = timestamppb.New(l.now())

	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(l.stub)
	ctx.SetClientIdentity(&fakeIdentity{id: callerID, mspID: "Org1MSP"})
	return ctx
}

func (l *testLedger) now() time.Time {
	return l.epoch.Add(time.Duration(l.txSeq) * time.Second)
}

// drainEvents empties the stub's event channel and returns the names seen, oldest first.
func (l *testLedger) drainEvents() []string {
	names := []string{}
	for {
		select {
		case ev := <-l.stub.ChaincodeEventsChannel:
			names = append(names, ev.EventName)
		default:
			return names
		}
	}
}

// snapshot copies the whole world state for before/after comparisons.
func (l *testLedger) snapshot() map[string]string {
	state := make(map[string]string, len(l.stub.State))
	for k, v := range l.stub.State {
		state[k] = string(v)
	}
	return state
}

// bootstrap makes adminID the admin, registers alice and bob as members, carl and
// dana as carriers, and returns the ledger ready for business calls.
func bootstrap(t *testing.T) *testLedger {
	t.Helper()
	l := newTestLedger(t)
	require.NoError(t, l.cc.InitLedger(l.as(adminID)))
	for _, id := range []string{aliceID, bobID} {
		require.NoError(t, l.cc.AddMember(l.as(adminID), id))
	}
	for _, id := range []string{carlID, danaID} {
		require.NoError(t, l.cc.AddCarrier(l.as(adminID), id))
	}
	l.drainEvents()
	return l
}

func (l *testLedger) addProduct(descriptor string) uint64 {
	l.t.Helper()
	id, err := l.cc.AddProduct(l.as(adminID), descriptor)
	require.NoError(l.t, err)
	return id
}

func (l *testLedger) createOrder(productID uint64) uint64 {
	l.t.Helper()
	id, err := l.cc.CreateOrder(l.as(aliceID), productID, aliceID, []string{bobID}, []string{carlID})
	require.NoError(l.t, err)
	return id
}
