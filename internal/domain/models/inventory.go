package models

import "github.com/mamadbah2/broiler/internal/apperror"

// FieldQuantityOnHand is the stored name of InventoryItem.QuantityOnHand.
const FieldQuantityOnHand = "quantity_on_hand"

// InventoryItem is a stock counter for feed, medicine or supplies.
type InventoryItem struct {
	ID                    int64   `bson:"_id" json:"id"`
	Name                  string  `bson:"name" json:"name"`
	Unit                  string  `bson:"unit" json:"unit"`
	QuantityOnHand        float64 `bson:"quantity_on_hand" json:"quantity_on_hand"`
	MinimumStockThreshold float64 `bson:"minimum_stock_threshold" json:"minimum_stock_threshold"`
}

func (i *InventoryItem) GetID() int64   { return i.ID }
func (i *InventoryItem) SetID(id int64) { i.ID = id }

// IsLowStock reports whether the item sits below its reorder threshold.
func (i *InventoryItem) IsLowStock() bool {
	return i.QuantityOnHand < i.MinimumStockThreshold
}

func (i *InventoryItem) Validate() error {
	switch {
	case i.Name == "":
		return apperror.MalformedRecord(CollectionInventory, i.ID, "name", "is required")
	case !validAmount(i.QuantityOnHand):
		return apperror.MalformedRecord(CollectionInventory, i.ID, "quantity_on_hand", "must be a non-negative number")
	case !validAmount(i.MinimumStockThreshold):
		return apperror.MalformedRecord(CollectionInventory, i.ID, "minimum_stock_threshold", "must be a non-negative number")
	}
	return nil
}
