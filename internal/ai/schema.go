package ai

// tradesSchemaDescription describes the ClickHouse trades table for the
// history tool's prompting context.
//
// Keep in sync with the actual ClickHouse table definition in init.sql.
const tradesSchemaDescription = `
Database: greendex
Table: trades

Columns:
  - tx_hash    String        -- Transaction hash (unique id)
  - timestamp  DateTime      -- Block time of the trade (UTC)
  - pair       String        -- Trading pair, e.g. "wFOR/USDC"
  - token_in   String        -- Symbol of token sold
  - token_out  String        -- Symbol of token bought
  - amount_in  Float64       -- Amount of token_in
  - amount_out Float64       -- Amount of token_out
  - price      Float64       -- Implied price: amount_out / amount_in
  - pool       String        -- Pool or book identifier
  - venue      String        -- "amm" or "orderbook"

Notes:
  - For volume use SUM(amount_in) or SUM(amount_out) depending on the unit.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
`
