package domain

// Purchase is a committed buy as recorded in the sale journal.
// Corresponds to purchases table in PostgreSQL.
type Purchase struct {
	PurchaseID  string  // deterministic hash of (tx_id, buyer)
	TxID        string  // ledger transaction id
	Buyer       Address // paying account
	Treasury    Address // proceeds destination
	Lamports    uint64  // payment
	Tokens      uint64  // token base units credited
	Price       uint64  // price in effect
	BuyerTotal  uint64  // buyer total after this purchase
	TimestampMs int64   // commit time (ms)
	CreatedAt   int64   // record creation timestamp (ms)
}

// ConfigEventKind names an administrative change to the sale configuration.
type ConfigEventKind string

const (
	ConfigEventInitialize        ConfigEventKind = "INITIALIZE"
	ConfigEventUpdatePrice       ConfigEventKind = "UPDATE_PRICE"
	ConfigEventTransferOwnership ConfigEventKind = "TRANSFER_OWNERSHIP"
	ConfigEventUpdateTreasury    ConfigEventKind = "UPDATE_TREASURY"
)

// ConfigEvent is an audit entry for a committed configuration change.
// Corresponds to config_events table in PostgreSQL.
type ConfigEvent struct {
	TxID        string
	Kind        ConfigEventKind
	Signer      Address    // payer for INITIALIZE, owner otherwise
	Config      SaleConfig // configuration after the change
	TimestampMs int64
}

// VolumePoint aggregates purchases over a fixed interval.
// Corresponds to sale_volume table in ClickHouse.
type VolumePoint struct {
	TimestampMs     int64  // interval start (ms)
	IntervalSeconds int    // 60, 300, 3600
	Lamports        uint64 // total lamports paid
	Tokens          uint64 // total tokens sold
	PurchaseCount   int    // number of purchases
	UniqueBuyers    int    // distinct buyers in interval
}

// Supported volume aggregation intervals (in seconds)
const (
	VolumeInterval1Min  = 60
	VolumeInterval5Min  = 300
	VolumeInterval1Hour = 3600
)
