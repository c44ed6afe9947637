package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/97woo/oraclevm/oe/option"
	bolt "go.etcd.io/bbolt"
)

var settledBucket = []byte("settled_contracts")

// Record is the archived form of a settled contract together with its
// settlement outcome.
type Record struct {
	OptionID             string    `json:"option_id"`
	Kind                 string    `json:"kind"`
	StrikePrice          uint64    `json:"strike_price"`
	QuantitySats         uint64    `json:"quantity_sats"`
	ExpiryHeight         uint32    `json:"expiry_height"`
	PremiumSats          uint64    `json:"premium_sats"`
	CollateralSats       uint64    `json:"collateral_sats"`
	Holder               string    `json:"holder"`
	Address              string    `json:"address"`
	SpotPrice            uint64    `json:"spot_price"`
	SettlementAmountSats uint64    `json:"settlement_amount_sats"`
	SettlementTxID       string    `json:"settlement_txid"`
	SettledAt            time.Time `json:"settled_at"`
}

// Archive is a durable append-only record of settled contracts, kept outside
// the hot path so the in-memory registry stays the source of truth for live
// state.
type Archive struct {
	db *bolt.DB
}

// Open opens or creates the archive database at the given path.
func Open(path string) (*Archive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settledBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive bucket: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put archives one settled contract with its settlement outcome.
func (a *Archive) Put(contract *option.Contract, spotPrice, settlementAmountSats uint64, settlementTxID string) error {
	record := Record{
		OptionID:             contract.ID,
		Kind:                 contract.Params.Kind.String(),
		StrikePrice:          contract.Params.StrikePrice,
		QuantitySats:         contract.Params.QuantitySats,
		ExpiryHeight:         contract.Params.ExpiryHeight,
		PremiumSats:          contract.Params.PremiumSats,
		CollateralSats:       contract.CollateralSats,
		Holder:               contract.Holder.String(),
		Address:              contract.Address,
		SpotPrice:            spotPrice,
		SettlementAmountSats: settlementAmountSats,
		SettlementTxID:       settlementTxID,
		SettledAt:            time.Now().UTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode archive record: %w", err)
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settledBucket).Put([]byte(record.OptionID), encoded)
	})
}

// Get returns the archived record for a contract id, if present.
func (a *Archive) Get(optionID string) (*Record, error) {
	var record *Record
	err := a.db.View(func(tx *bolt.Tx) error {
		encoded := tx.Bucket(settledBucket).Get([]byte(optionID))
		if encoded == nil {
			return nil
		}
		record = &Record{}
		return json.Unmarshal(encoded, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// List returns all archived records in key order.
func (a *Archive) List() ([]Record, error) {
	var records []Record
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(settledBucket).ForEach(func(_, encoded []byte) error {
			var record Record
			if err := json.Unmarshal(encoded, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
