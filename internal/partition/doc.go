// Package partition stores DailyBatches as one Parquet artifact per
// (location, date) partition and answers point queries over them.
//
// The Writer serializes a batch fully in memory and publishes it with a
// single object store Put, so a partition always holds either the previous
// artifact or the new one. The Reader prunes to one partition by listing its
// prefix, then queries the artifact through DuckDB with hive partitioning so
// the location, year, month and day columns come from the object key.
package partition
