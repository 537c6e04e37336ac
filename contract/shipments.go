package contract

import (
	"encoding/json"
	"fmt"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var shipmentLogger = flogging.MustGetLogger("bklogistics.shipments")

// ShipmentTracker owns carrier shipments. It looks orders up through the OrderTracker.
type ShipmentTracker struct {
	Ctx    contractapi.TransactionContextInterface
	acl    *AccessControl
	orders *OrderTracker
}

// NewShipmentTracker binds a shipment tracker to the transaction context.
func NewShipmentTracker(ctx contractapi.TransactionContextInterface) *ShipmentTracker {
	return &ShipmentTracker{Ctx: ctx, acl: NewAccessControl(ctx), orders: NewOrderTracker(ctx)}
}

func (st *ShipmentTracker) shipmentKey(id uint64) (string, error) {
	return st.Ctx.GetStub().CreateCompositeKey(shipmentObjectType, []string{padID(id)})
}

// Create registers a shipment for an open order. The caller must be the carrier named
// and that carrier must be listed on the order.
func (st *ShipmentTracker) Create(orderID uint64, carrier string) (*model.Shipment, error) {
	callerID, err := st.acl.CallerID()
	if err != nil {
		return nil, err
	}
	carrier, err = normaliseIdentity(carrier, "carrier")
	if err != nil {
		return nil, err
	}
	isCarrier, err := st.acl.HasRole(model.RoleCarrier, callerID)
	if err != nil {
		return nil, err
	}
	if !isCarrier || callerID != carrier {
		return nil, fmt.Errorf("%w: caller '%s' cannot create shipments for carrier '%s'", ErrNotAuthorizedCarrier, callerID, carrier)
	}
	order, err := st.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasCarrier(carrier) {
		return nil, fmt.Errorf("%w: '%s' is not a registered carrier of order %d", ErrNotAuthorizedCarrier, carrier, orderID)
	}
	if !order.Status.IsOpen() {
		return nil, fmt.Errorf("%w: order %d is '%s' and accepts no shipments", ErrInvalidTransition, orderID, order.Status)
	}
	now, err := getCurrentTxTimestamp(st.Ctx)
	if err != nil {
		return nil, err
	}

	id, err := nextCounter(st.Ctx, shipmentCounter)
	if err != nil {
		return nil, err
	}
	shipment := &model.Shipment{
		ObjectType: shipmentObjectType,
		ID:         id,
		OrderID:    orderID,
		Carrier:    carrier,
		Status:     model.ShipmentCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.save(shipment); err != nil {
		return nil, err
	}
	payload := model.ShipmentCreatedPayload{ShipmentID: id, OrderID: orderID, Carrier: carrier}
	if err := recordEvent(st.Ctx, model.EventShipmentCreated, callerID, payload); err != nil {
		return nil, err
	}
	shipmentLogger.Infof("Shipment %d for order %d created by carrier '%s'.", id, orderID, carrier)
	return shipment, nil
}

// Advance enforces CREATED -> IN_TRANSIT -> DELIVERED, one step at a time.
func (st *ShipmentTracker) Advance(id uint64, next model.ShipmentStatus) (*model.Shipment, error) {
	callerID, err := st.acl.CallerID()
	if err != nil {
		return nil, err
	}
	shipment, err := st.Get(id)
	if err != nil {
		return nil, err
	}
	isCarrier, err := st.acl.HasRole(model.RoleCarrier, callerID)
	if err != nil {
		return nil, err
	}
	if !isCarrier || callerID != shipment.Carrier {
		return nil, fmt.Errorf("%w: '%s' is not the carrier of shipment %d", ErrNotAuthorizedCarrier, callerID, id)
	}
	if !shipment.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: shipment %d cannot move from '%s' to '%s'", ErrInvalidTransition, id, shipment.Status, next)
	}
	now, err := getCurrentTxTimestamp(st.Ctx)
	if err != nil {
		return nil, err
	}

	prev := shipment.Status
	shipment.Status = next
	shipment.UpdatedAt = now
	if err := st.save(shipment); err != nil {
		return nil, err
	}
	payload := model.ShipmentStatusPayload{ShipmentID: id, From: prev, To: next}
	if err := recordEvent(st.Ctx, model.EventShipmentStatusChanged, callerID, payload); err != nil {
		return nil, err
	}
	shipmentLogger.Infof("Shipment %d moved from '%s' to '%s' by carrier '%s'.", id, prev, next, callerID)
	return shipment, nil
}

func (st *ShipmentTracker) save(shipment *model.Shipment) error {
	key, err := st.shipmentKey(shipment.ID)
	if err != nil {
		return fmt.Errorf("failed to create shipment key for %d: %w", shipment.ID, err)
	}
	return putJSON(st.Ctx, key, shipment)
}

// Get loads a shipment by id, or fails with ErrNotFound.
func (st *ShipmentTracker) Get(id uint64) (*model.Shipment, error) {
	key, err := st.shipmentKey(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create shipment key for %d: %w", id, err)
	}
	var shipment model.Shipment
	found, err := getJSON(st.Ctx, key, &shipment)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: shipment %d does not exist", ErrNotFound, id)
	}
	return &shipment, nil
}

// ForOrder lists the shipments of one order.
func (st *ShipmentTracker) ForOrder(orderID uint64) ([]*model.Shipment, error) {
	if _, err := st.orders.Get(orderID); err != nil {
		return nil, err
	}
	iterator, err := st.Ctx.GetStub().GetStateByPartialCompositeKey(shipmentObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get shipments iterator: %w", err)
	}
	defer iterator.Close()

	shipments := []*model.Shipment{}
	for iterator.HasNext() {
		kv, iterErr := iterator.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to iterate shipments: %w", iterErr)
		}
		var shipment model.Shipment
		if err := json.Unmarshal(kv.Value, &shipment); err != nil {
			shipmentLogger.Warningf("Failed to unmarshal shipment at key '%s': %v. Skipping.", kv.Key, err)
			continue
		}
		if shipment.OrderID == orderID {
			shipments = append(shipments, &shipment)
		}
	}
	return shipments, nil
}
