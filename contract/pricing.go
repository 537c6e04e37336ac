package contract

import (
	"fmt"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var pricingLogger = flogging.MustGetLogger("bklogistics.pricing")

// Pricing owns the price table: one current quote per (member, product). The tier is an
// attribute of the quote, not part of its key.
type Pricing struct {
	Ctx     contractapi.TransactionContextInterface
	acl     *AccessControl
	catalog *Catalog
}

// NewPricing binds a pricing engine to the transaction context.
func NewPricing(ctx contractapi.TransactionContextInterface) *Pricing {
	return &Pricing{Ctx: ctx, acl: NewAccessControl(ctx), catalog: NewCatalog(ctx)}
}

func (p *Pricing) priceKey(member string, productID uint64) (string, error) {
	return p.Ctx.GetStub().CreateCompositeKey(priceObjectType, []string{member, padID(productID)})
}

// Modify overwrites the caller's quote for productID, whatever tier it was quoted under
// before, and bumps its revision.
func (p *Pricing) Modify(productID, amount uint64, tier, flags uint32) (*model.PriceQuote, error) {
	callerID, err := p.acl.RequireRole(model.RoleMember)
	if err != nil {
		return nil, err
	}
	exists, err := p.catalog.Exists(productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: product %d is not in the catalog", ErrUnknownProduct, productID)
	}

	key, err := p.priceKey(callerID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to create price key: %w", err)
	}
	var quote model.PriceQuote
	if _, err := getJSON(p.Ctx, key, &quote); err != nil {
		return nil, err
	}
	now, err := getCurrentTxTimestamp(p.Ctx)
	if err != nil {
		return nil, err
	}

	quote = model.PriceQuote{
		ObjectType: priceObjectType,
		Member:     callerID,
		ProductID:  productID,
		Tier:       tier,
		Amount:     amount,
		Flags:      flags,
		Revision:   quote.Revision + 1,
		UpdatedAt:  now,
	}
	if err := putJSON(p.Ctx, key, quote); err != nil {
		return nil, err
	}
	payload := model.PriceUpdatedPayload{Member: callerID, ProductID: productID, Tier: tier, Amount: amount, Flags: flags}
	if err := recordEvent(p.Ctx, model.EventPriceUpdated, callerID, payload); err != nil {
		return nil, err
	}
	pricingLogger.Infof("Member '%s' priced product %d tier %d at %d (revision %d).", callerID, productID, tier, amount, quote.Revision)
	return &quote, nil
}

// Get returns the current quote of member for productID. A key that was never written is
// ErrNoQuote, never a zero quote. tier only labels the request: the stored quote carries the
// tier it was last written under and is returned regardless.
func (p *Pricing) Get(member string, productID uint64, tier uint32) (*model.PriceQuote, error) {
	member, err := normaliseIdentity(member, "member")
	if err != nil {
		return nil, err
	}
	key, err := p.priceKey(member, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to create price key: %w", err)
	}
	var quote model.PriceQuote
	found, err := getJSON(p.Ctx, key, &quote)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: member '%s' has no price for product %d", ErrNoQuote, member, productID)
	}
	if quote.Tier != tier {
		pricingLogger.Debugf("Quote of '%s' for product %d requested at tier %d, current tier is %d.", member, productID, tier, quote.Tier)
	}
	return &quote, nil
}
