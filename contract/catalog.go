package contract

import (
	"fmt"
	"strings"

	"bklogistics/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
	"github.com/xeipuuv/gojsonschema"
)

var catalogLogger = flogging.MustGetLogger("bklogistics.catalog")

// productAttributesSchema constrains the optional attribute document attached to a product.
const productAttributesSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"sku":         {"type": "string", "minLength": 1, "maxLength": 64},
		"unit":        {"type": "string", "enum": ["piece", "kg", "litre", "pallet", "container"]},
		"weightGrams": {"type": "integer", "minimum": 0},
		"hsCode":      {"type": "string", "pattern": "^[0-9]{6,10}$"},
		"origin":      {"type": "string", "pattern": "^[A-Z]{2}$"}
	}
}`

var productAttributesSchemaLoader = gojsonschema.NewStringLoader(productAttributesSchema)

// Catalog owns the product table. Mutations are admin-gated.
type Catalog struct {
	Ctx contractapi.TransactionContextInterface
	acl *AccessControl
}

// NewCatalog binds a product catalog to the transaction context.
func NewCatalog(ctx contractapi.TransactionContextInterface) *Catalog {
	return &Catalog{Ctx: ctx, acl: NewAccessControl(ctx)}
}

func (c *Catalog) productKey(id uint64) (string, error) {
	return c.Ctx.GetStub().CreateCompositeKey(productObjectType, []string{padID(id)})
}

func (c *Catalog) revisionKey(id, revision uint64) (string, error) {
	return c.Ctx.GetStub().CreateCompositeKey(productRevisionObjectType, []string{padID(id), padID(revision)})
}

// validateAttributes normalises an empty document to "{}" and checks it against the schema.
func validateAttributes(attributesJSON string) (string, error) {
	attributesJSON = strings.TrimSpace(attributesJSON)
	if attributesJSON == "" {
		return "{}", nil
	}
	result, err := gojsonschema.Validate(productAttributesSchemaLoader, gojsonschema.NewStringLoader(attributesJSON))
	if err != nil {
		return "", fmt.Errorf("%w: attributes are not valid JSON: %v", ErrInvalidInput, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return "", fmt.Errorf("%w: attributes rejected: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return attributesJSON, nil
}

// Add registers a product under the next unused id.
func (c *Catalog) Add(descriptor, attributesJSON string) (*model.Product, error) {
	callerID, err := c.acl.RequireRole(model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredString(descriptor, "descriptor", maxDescriptorLength); err != nil {
		return nil, err
	}
	attributes, err := validateAttributes(attributesJSON)
	if err != nil {
		return nil, err
	}
	now, err := getCurrentTxTimestamp(c.Ctx)
	if err != nil {
		return nil, err
	}

	id, err := nextCounter(c.Ctx, productCounter)
	if err != nil {
		return nil, err
	}
	product := &model.Product{
		ObjectType: productObjectType,
		ID:         id,
		Descriptor: descriptor,
		Attributes: attributes,
		Revision:   1,
		CreatedBy:  callerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.save(product, callerID); err != nil {
		return nil, err
	}
	if err := recordEvent(c.Ctx, model.EventProductAdded, callerID, model.ProductAddedPayload{ID: id, Descriptor: descriptor}); err != nil {
		return nil, err
	}
	catalogLogger.Infof("Product %d '%s' added by admin '%s'.", id, descriptor, callerID)
	return product, nil
}

// Revise replaces a product's descriptor and attributes. The prior revision stays readable.
func (c *Catalog) Revise(id uint64, descriptor, attributesJSON string) (*model.Product, error) {
	callerID, err := c.acl.RequireRole(model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredString(descriptor, "descriptor", maxDescriptorLength); err != nil {
		return nil, err
	}
	attributes, err := validateAttributes(attributesJSON)
	if err != nil {
		return nil, err
	}
	product, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	now, err := getCurrentTxTimestamp(c.Ctx)
	if err != nil {
		return nil, err
	}

	product.Descriptor = descriptor
	product.Attributes = attributes
	product.Revision++
	product.UpdatedAt = now
	if err := c.save(product, callerID); err != nil {
		return nil, err
	}
	payload := model.ProductRevisedPayload{ID: id, Revision: product.Revision, Descriptor: descriptor}
	if err := recordEvent(c.Ctx, model.EventProductRevised, callerID, payload); err != nil {
		return nil, err
	}
	catalogLogger.Infof("Product %d revised to revision %d by admin '%s'.", id, product.Revision, callerID)
	return product, nil
}

// save writes the current product row and its revision snapshot.
func (c *Catalog) save(product *model.Product, actor string) error {
	key, err := c.productKey(product.ID)
	if err != nil {
		return fmt.Errorf("failed to create product key for %d: %w", product.ID, err)
	}
	if err := putJSON(c.Ctx, key, product); err != nil {
		return err
	}
	revKey, err := c.revisionKey(product.ID, product.Revision)
	if err != nil {
		return fmt.Errorf("failed to create revision key for %d: %w", product.ID, err)
	}
	return putJSON(c.Ctx, revKey, model.ProductRevision{
		ObjectType: productRevisionObjectType,
		ProductID:  product.ID,
		Revision:   product.Revision,
		Descriptor: product.Descriptor,
		Attributes: product.Attributes,
		RevisedBy:  actor,
		RevisedAt:  product.UpdatedAt,
	})
}

// Exists is the live lookup other components use before referencing a product id.
func (c *Catalog) Exists(id uint64) (bool, error) {
	if id == 0 {
		return false, nil
	}
	key, err := c.productKey(id)
	if err != nil {
		return false, fmt.Errorf("failed to create product key for %d: %w", id, err)
	}
	raw, err := c.Ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("ledger error reading product %d: %w", id, err)
	}
	return raw != nil, nil
}

// Get loads the current revision of a product, or fails with ErrNotFound.
func (c *Catalog) Get(id uint64) (*model.Product, error) {
	key, err := c.productKey(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create product key for %d: %w", id, err)
	}
	var product model.Product
	found, err := getJSON(c.Ctx, key, &product)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: product %d does not exist", ErrNotFound, id)
	}
	return &product, nil
}

// History returns every revision of a product, oldest first.
func (c *Catalog) History(id uint64) ([]*model.ProductRevision, error) {
	product, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	revisions := make([]*model.ProductRevision, 0, product.Revision)
	for rev := uint64(1); rev <= product.Revision; rev++ {
		key, err := c.revisionKey(id, rev)
		if err != nil {
			return nil, fmt.Errorf("failed to create revision key for %d: %w", id, err)
		}
		var revision model.ProductRevision
		found, err := getJSON(c.Ctx, key, &revision)
		if err != nil {
			return nil, err
		}
		if !found {
			catalogLogger.Warningf("Revision %d of product %d missing from ledger. Skipping.", rev, id)
			continue
		}
		revisions = append(revisions, &revision)
	}
	return revisions, nil
}
