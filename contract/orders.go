package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var orderLogger = flogging.MustGetLogger("bklogistics.orders")

// OrderTracker owns multi-party orders. Products and participants are referenced by id
// and re-validated against the catalog and the role registry on every call.
type OrderTracker struct {
	Ctx     contractapi.TransactionContextInterface
	acl     *AccessControl
	catalog *Catalog
}

// NewOrderTracker binds an order tracker to the transaction context.
func NewOrderTracker(ctx contractapi.TransactionContextInterface) *OrderTracker {
	return &OrderTracker{Ctx: ctx, acl: NewAccessControl(ctx), catalog: NewCatalog(ctx)}
}

func (ot *OrderTracker) orderKey(id uint64) (string, error) {
	return ot.Ctx.GetStub().CreateCompositeKey(orderObjectType, []string{padID(id)})
}

// Create validates every participant before anything is written, so a failing
// participant leaves no order behind and consumes no order id.
func (ot *OrderTracker) Create(productID uint64, requester string, suppliers, carriers []string) (*model.Order, error) {
	callerID, err := ot.acl.RequireRole(model.RoleMember)
	if err != nil {
		return nil, err
	}
	requester, err = normaliseIdentity(requester, "requester")
	if err != nil {
		return nil, err
	}
	if requester != callerID {
		return nil, fmt.Errorf("%w: caller '%s' cannot create orders on behalf of '%s'", ErrUnauthorized, callerID, requester)
	}
	exists, err := ot.catalog.Exists(productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: product %d is not in the catalog", ErrUnknownProduct, productID)
	}
	suppliers, err = normaliseParticipants(suppliers, "suppliers")
	if err != nil {
		return nil, err
	}
	carriers, err = normaliseParticipants(carriers, "carriers")
	if err != nil {
		return nil, err
	}
	if err := ot.requireAll(suppliers, model.RoleMember); err != nil {
		return nil, err
	}
	if err := ot.requireAll(carriers, model.RoleCarrier); err != nil {
		return nil, err
	}
	now, err := getCurrentTxTimestamp(ot.Ctx)
	if err != nil {
		return nil, err
	}

	id, err := nextCounter(ot.Ctx, orderCounter)
	if err != nil {
		return nil, err
	}
	order := &model.Order{
		ObjectType: orderObjectType,
		ID:         id,
		ProductID:  productID,
		Requester:  requester,
		Suppliers:  suppliers,
		Carriers:   carriers,
		Status:     model.OrderCreated,
		CreatedBy:  callerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := ot.save(order); err != nil {
		return nil, err
	}
	payload := model.OrderCreatedPayload{
		OrderID:   id,
		ProductID: productID,
		Requester: requester,
		Suppliers: order.Suppliers,
		Carriers:  order.Carriers,
	}
	if err := recordEvent(ot.Ctx, model.EventOrderCreated, callerID, payload); err != nil {
		return nil, err
	}
	orderLogger.Infof("Order %d for product %d created by '%s' with %d supplier(s) and %d carrier(s).", id, productID, callerID, len(suppliers), len(carriers))
	return order, nil
}

// requireAll stops at the first identity that does not currently hold role.
func (ot *OrderTracker) requireAll(ids []string, role model.Role) error {
	for _, id := range ids {
		has, err := ot.acl.HasRole(role, id)
		if err != nil {
			return err
		}
		if !has {
			return &RoleViolationError{Identity: id, Role: role}
		}
	}
	return nil
}

// Advance moves an order forward. Only a carrier listed on the order may do it.
func (ot *OrderTracker) Advance(id uint64, next model.OrderStatus) (*model.Order, error) {
	callerID, err := ot.acl.CallerID()
	if err != nil {
		return nil, err
	}
	if next == model.OrderCancelled {
		return nil, fmt.Errorf("%w: use CancelOrder to cancel order %d", ErrInvalidTransition, id)
	}
	order, err := ot.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ot.requireListedCarrier(order, callerID); err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: order %d cannot move from '%s' to '%s'", ErrInvalidTransition, id, order.Status, next)
	}
	return ot.transition(order, next, callerID, model.EventOrderStatusChanged)
}

// Cancel is allowed for the requester (while still a member) and for admins.
func (ot *OrderTracker) Cancel(id uint64) (*model.Order, error) {
	callerID, err := ot.acl.CallerID()
	if err != nil {
		return nil, err
	}
	order, err := ot.Get(id)
	if err != nil {
		return nil, err
	}
	isAdmin, err := ot.acl.HasRole(model.RoleAdmin, callerID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		isMember, err := ot.acl.HasRole(model.RoleMember, callerID)
		if err != nil {
			return nil, err
		}
		if !isMember || callerID != order.Requester {
			return nil, fmt.Errorf("%w: only the requesting member or an admin can cancel order %d", ErrUnauthorized, id)
		}
	}
	if !order.Status.CanTransitionTo(model.OrderCancelled) {
		return nil, fmt.Errorf("%w: order %d cannot be cancelled from '%s'", ErrInvalidTransition, id, order.Status)
	}
	return ot.transition(order, model.OrderCancelled, callerID, model.EventOrderCancelled)
}

func (ot *OrderTracker) requireListedCarrier(order *model.Order, callerID string) error {
	isCarrier, err := ot.acl.HasRole(model.RoleCarrier, callerID)
	if err != nil {
		return err
	}
	if !isCarrier || !order.HasCarrier(callerID) {
		return fmt.Errorf("%w: '%s' is not a registered carrier of order %d", ErrNotAuthorizedCarrier, callerID, order.ID)
	}
	return nil
}

func (ot *OrderTracker) transition(order *model.Order, next model.OrderStatus, actor, eventName string) (*model.Order, error) {
	now, err := getCurrentTxTimestamp(ot.Ctx)
	if err != nil {
		return nil, err
	}
	prev := order.Status
	order.Status = next
	order.UpdatedAt = now
	if err := ot.save(order); err != nil {
		return nil, err
	}
	payload := model.OrderStatusPayload{OrderID: order.ID, From: prev, To: next}
	if err := recordEvent(ot.Ctx, eventName, actor, payload); err != nil {
		return nil, err
	}
	orderLogger.Infof("Order %d moved from '%s' to '%s' by '%s'.", order.ID, prev, next, actor)
	return order, nil
}

func (ot *OrderTracker) save(order *model.Order) error {
	key, err := ot.orderKey(order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order key for %d: %w", order.ID, err)
	}
	return putJSON(ot.Ctx, key, order)
}

// Get loads an order by id, or fails with ErrNotFound.
func (ot *OrderTracker) Get(id uint64) (*model.Order, error) {
	key, err := ot.orderKey(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create order key for %d: %w", id, err)
	}
	var order model.Order
	found, err := getJSON(ot.Ctx, key, &order)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: order %d does not exist", ErrNotFound, id)
	}
	ensureOrderSchemaCompliance(&order)
	return &order, nil
}

// ByRequester scans the order table for orders placed by requester.
func (ot *OrderTracker) ByRequester(requester string) ([]*model.Order, error) {
	requester, err := normaliseIdentity(requester, "requester")
	if err != nil {
		return nil, err
	}
	iterator, err := ot.Ctx.GetStub().GetStateByPartialCompositeKey(orderObjectType, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get orders iterator: %w", err)
	}
	defer iterator.Close()

	orders := []*model.Order{}
	for iterator.HasNext() {
		kv, iterErr := iterator.Next()
		if iterErr != nil {
			return nil, fmt.Errorf("failed to iterate orders: %w", iterErr)
		}
		var order model.Order
		if err := json.Unmarshal(kv.Value, &order); err != nil {
			orderLogger.Warningf("Failed to unmarshal order at key '%s': %v. Skipping.", kv.Key, err)
			continue
		}
		if order.Requester == requester {
			ensureOrderSchemaCompliance(&order)
			orders = append(orders, &order)
		}
	}
	return orders, nil
}

// Page walks the order table in id order. The bookmark is the last order id the previous
// page looked at; an empty status matches every order.
func (ot *OrderTracker) Page(status model.OrderStatus, pageSize int, bookmark string) (*model.PaginatedOrderResponse, error) {
	start := uint64(1)
	if bookmark != "" {
		last, err := strconv.ParseUint(bookmark, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bookmark '%s' is not an order id", ErrInvalidInput, bookmark)
		}
		start = last + 1
	}
	next, err := peekCounter(ot.Ctx, orderCounter)
	if err != nil {
		return nil, err
	}

	resp := &model.PaginatedOrderResponse{Orders: []*model.Order{}}
	scanned := start - 1
	for id := start; id < next && len(resp.Orders) < pageSize; id++ {
		scanned = id
		order, err := ot.Get(id)
		if err != nil {
			orderLogger.Warningf("Order %d unreadable while paging: %v. Skipping.", id, err)
			continue
		}
		if status == "" || order.Status == status {
			resp.Orders = append(resp.Orders, order)
		}
	}
	resp.FetchedCount = int32(len(resp.Orders))
	if scanned+1 < next {
		resp.NextBookmark = strconv.FormatUint(scanned, 10)
	}
	return resp, nil
}

func ensureOrderSchemaCompliance(order *model.Order) {
	if order.Suppliers == nil {
		order.Suppliers = []string{}
	}
	if order.Carriers == nil {
		order.Carriers = []string{}
	}
}
