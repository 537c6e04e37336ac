package contract

import (
	"fmt"
	"strconv"
	"strings"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("bklogistics.contract")

// SupplyChainContract exposes the ledger's transaction functions. Each function is a
// thin wrapper that delegates to the component owning the state it mutates.
// @contract:SupplyChainContract
type SupplyChainContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *SupplyChainContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("SupplyChainContract Instantiated/Upgraded")
}

// InitLedger makes the caller the ledger admin. It can only succeed once.
func (s *SupplyChainContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to bootstrap ledger with initial admin...")
	if _, err := NewAccessControl(ctx).Bootstrap(); err != nil {
		return fmt.Errorf("InitLedger: %w", err)
	}
	return nil
}

// --- Access control ---

func (s *SupplyChainContract) AddMember(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: AddMember for '%s'", identity)
	if _, err := NewAccessControl(ctx).Grant(model.RoleMember, identity); err != nil {
		return fmt.Errorf("AddMember: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) RemoveMember(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: RemoveMember for '%s'", identity)
	if _, err := NewAccessControl(ctx).Revoke(model.RoleMember, identity); err != nil {
		return fmt.Errorf("RemoveMember: %w", err)
	}
	return nil
}

// RenounceMember drops the caller's own member role; identity must be the caller.
func (s *SupplyChainContract) RenounceMember(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: RenounceMember for '%s'", identity)
	if err := NewAccessControl(ctx).Renounce(model.RoleMember, identity); err != nil {
		return fmt.Errorf("RenounceMember: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) AddCarrier(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: AddCarrier for '%s'", identity)
	if _, err := NewAccessControl(ctx).Grant(model.RoleCarrier, identity); err != nil {
		return fmt.Errorf("AddCarrier: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) RemoveCarrier(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: RemoveCarrier for '%s'", identity)
	if _, err := NewAccessControl(ctx).Revoke(model.RoleCarrier, identity); err != nil {
		return fmt.Errorf("RemoveCarrier: %w", err)
	}
	return nil
}

// RenounceCarrier drops the caller's own carrier role; identity must be the caller.
func (s *SupplyChainContract) RenounceCarrier(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: RenounceCarrier for '%s'", identity)
	if err := NewAccessControl(ctx).Renounce(model.RoleCarrier, identity); err != nil {
		return fmt.Errorf("RenounceCarrier: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) HasRole(ctx contractapi.TransactionContextInterface, role string, identity string) (bool, error) {
	return NewAccessControl(ctx).HasRole(parseRole(role), identity)
}

// GetRoleHolders lists identities holding a role. Any caller may read it.
func (s *SupplyChainContract) GetRoleHolders(ctx contractapi.TransactionContextInterface, role string) ([]string, error) {
	logger.Debugf("Chaincode Call: GetRoleHolders for role '%s'", role)
	return NewAccessControl(ctx).RoleHolders(parseRole(role))
}

func (s *SupplyChainContract) GetMyRoles(ctx contractapi.TransactionContextInterface) ([]model.Role, error) {
	ac := NewAccessControl(ctx)
	callerID, err := ac.CallerID()
	if err != nil {
		return nil, fmt.Errorf("GetMyRoles: %w", err)
	}
	return ac.RolesOf(callerID)
}

// --- Product catalog ---

func (s *SupplyChainContract) AddProduct(ctx contractapi.TransactionContextInterface, descriptor string) (uint64, error) {
	logger.Infof("Chaincode Call: AddProduct '%s'", descriptor)
	product, err := NewCatalog(ctx).Add(descriptor, "")
	if err != nil {
		return 0, fmt.Errorf("AddProduct: %w", err)
	}
	return product.ID, nil
}

func (s *SupplyChainContract) AddProductWithAttributes(ctx contractapi.TransactionContextInterface, descriptor string, attributesJSON string) (uint64, error) {
	logger.Infof("Chaincode Call: AddProductWithAttributes '%s'", descriptor)
	product, err := NewCatalog(ctx).Add(descriptor, attributesJSON)
	if err != nil {
		return 0, fmt.Errorf("AddProductWithAttributes: %w", err)
	}
	return product.ID, nil
}

func (s *SupplyChainContract) ReviseProduct(ctx contractapi.TransactionContextInterface, productID uint64, descriptor string, attributesJSON string) error {
	logger.Infof("Chaincode Call: ReviseProduct %d", productID)
	if _, err := NewCatalog(ctx).Revise(productID, descriptor, attributesJSON); err != nil {
		return fmt.Errorf("ReviseProduct: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) ProductExists(ctx contractapi.TransactionContextInterface, productID uint64) (bool, error) {
	return NewCatalog(ctx).Exists(productID)
}

func (s *SupplyChainContract) GetProduct(ctx contractapi.TransactionContextInterface, productID uint64) (*model.Product, error) {
	return NewCatalog(ctx).Get(productID)
}

func (s *SupplyChainContract) GetProductHistory(ctx contractapi.TransactionContextInterface, productID uint64) ([]*model.ProductRevision, error) {
	return NewCatalog(ctx).History(productID)
}

// --- Pricing ---

func (s *SupplyChainContract) ModifyPrice(ctx contractapi.TransactionContextInterface, productID uint64, amount uint64, tier uint32, flags uint32) error {
	logger.Infof("Chaincode Call: ModifyPrice product %d tier %d amount %d", productID, tier, amount)
	if _, err := NewPricing(ctx).Modify(productID, amount, tier, flags); err != nil {
		return fmt.Errorf("ModifyPrice: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) GetPrice(ctx contractapi.TransactionContextInterface, member string, productID uint64, tier uint32) (*model.PriceQuote, error) {
	return NewPricing(ctx).Get(member, productID, tier)
}

// --- Credentials ---

func (s *SupplyChainContract) IssueCredential(ctx contractapi.TransactionContextInterface, identity string) (string, error) {
	logger.Infof("Chaincode Call: IssueCredential to '%s'", identity)
	credential, err := NewCredentials(ctx).Issue(identity)
	if err != nil {
		return "", fmt.Errorf("IssueCredential: %w", err)
	}
	return credential.ID, nil
}

func (s *SupplyChainContract) RevokeCredential(ctx contractapi.TransactionContextInterface, identity string) error {
	logger.Infof("Chaincode Call: RevokeCredential of '%s'", identity)
	if err := NewCredentials(ctx).Revoke(identity); err != nil {
		return fmt.Errorf("RevokeCredential: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) GetCredential(ctx contractapi.TransactionContextInterface, identity string) (*model.Credential, error) {
	return NewCredentials(ctx).Get(identity)
}

// --- Orders ---

func (s *SupplyChainContract) CreateOrder(ctx contractapi.TransactionContextInterface, productID uint64, requester string, suppliers []string, carriers []string) (uint64, error) {
	logger.Infof("Chaincode Call: CreateOrder product %d for '%s'", productID, requester)
	order, err := NewOrderTracker(ctx).Create(productID, requester, suppliers, carriers)
	if err != nil {
		return 0, fmt.Errorf("CreateOrder: %w", err)
	}
	return order.ID, nil
}

func (s *SupplyChainContract) AdvanceOrder(ctx contractapi.TransactionContextInterface, orderID uint64, newStatus string) error {
	logger.Infof("Chaincode Call: AdvanceOrder %d to '%s'", orderID, newStatus)
	if _, err := NewOrderTracker(ctx).Advance(orderID, model.OrderStatus(normaliseStatus(newStatus))); err != nil {
		return fmt.Errorf("AdvanceOrder: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) CancelOrder(ctx contractapi.TransactionContextInterface, orderID uint64) error {
	logger.Infof("Chaincode Call: CancelOrder %d", orderID)
	if _, err := NewOrderTracker(ctx).Cancel(orderID); err != nil {
		return fmt.Errorf("CancelOrder: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) GetOrder(ctx contractapi.TransactionContextInterface, orderID uint64) (*model.Order, error) {
	return NewOrderTracker(ctx).Get(orderID)
}

func (s *SupplyChainContract) GetOrdersByRequester(ctx contractapi.TransactionContextInterface, requester string) ([]*model.Order, error) {
	logger.Debugf("Chaincode Call: GetOrdersByRequester for '%s'", requester)
	return NewOrderTracker(ctx).ByRequester(requester)
}

// GetAllOrders pages through every order. pageSizeStr defaults to 10 and is capped at 100.
func (s *SupplyChainContract) GetAllOrders(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedOrderResponse, error) {
	pageSize := parsePageSize(pageSizeStr)
	logger.Infof("Chaincode Call: GetAllOrders (pageSize: %d, bookmark: '%s')", pageSize, bookmark)
	return NewOrderTracker(ctx).Page("", pageSize, bookmark)
}

func (s *SupplyChainContract) GetOrdersByStatus(ctx contractapi.TransactionContextInterface, status string, pageSizeStr string, bookmark string) (*model.PaginatedOrderResponse, error) {
	orderStatus := model.OrderStatus(normaliseStatus(status))
	switch orderStatus {
	case model.OrderCreated, model.OrderInTransit, model.OrderDelivered, model.OrderCancelled:
	default:
		return nil, fmt.Errorf("GetOrdersByStatus: %w: unknown order status '%s'", ErrInvalidInput, status)
	}
	pageSize := parsePageSize(pageSizeStr)
	logger.Infof("Chaincode Call: GetOrdersByStatus '%s' (pageSize: %d, bookmark: '%s')", orderStatus, pageSize, bookmark)
	return NewOrderTracker(ctx).Page(orderStatus, pageSize, bookmark)
}

// --- Shipments ---

func (s *SupplyChainContract) CreateShipment(ctx contractapi.TransactionContextInterface, orderID uint64, carrier string) (uint64, error) {
	logger.Infof("Chaincode Call: CreateShipment for order %d by '%s'", orderID, carrier)
	shipment, err := NewShipmentTracker(ctx).Create(orderID, carrier)
	if err != nil {
		return 0, fmt.Errorf("CreateShipment: %w", err)
	}
	return shipment.ID, nil
}

func (s *SupplyChainContract) AdvanceShipment(ctx contractapi.TransactionContextInterface, shipmentID uint64, newStatus string) error {
	logger.Infof("Chaincode Call: AdvanceShipment %d to '%s'", shipmentID, newStatus)
	if _, err := NewShipmentTracker(ctx).Advance(shipmentID, model.ShipmentStatus(normaliseStatus(newStatus))); err != nil {
		return fmt.Errorf("AdvanceShipment: %w", err)
	}
	return nil
}

func (s *SupplyChainContract) GetShipment(ctx contractapi.TransactionContextInterface, shipmentID uint64) (*model.Shipment, error) {
	return NewShipmentTracker(ctx).Get(shipmentID)
}

func (s *SupplyChainContract) GetShipmentsForOrder(ctx contractapi.TransactionContextInterface, orderID uint64) ([]*model.Shipment, error) {
	return NewShipmentTracker(ctx).ForOrder(orderID)
}

// --- Audit ---

// GetAuditTrail returns audit entries from fromSequence on; limit <= 0 means the page maximum.
func (s *SupplyChainContract) GetAuditTrail(ctx contractapi.TransactionContextInterface, fromSequence uint64, limit int) ([]*model.AuditEvent, error) {
	return AuditTrail(ctx, fromSequence, limit)
}

func parsePageSize(pageSizeStr string) int {
	pageSize, err := strconv.Atoi(pageSizeStr)
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize
}

func parseRole(role string) model.Role {
	return model.Role(strings.ToLower(strings.TrimSpace(role)))
}

// normaliseStatus accepts "in transit", "in-transit" and "IN_TRANSIT" alike.
func normaliseStatus(status string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(status)
}
