// Package memory provides the in-memory account store.
//
// Locking is layered to match the mutation being made:
//
//   - token -> account lives in a sharded map; CreateAccount locks one shard
//   - each account guards its counter map with its own RWMutex;
//     CreateCounter takes it exclusively, Increment only shares it
//   - each counter guards its entries with its own mutex; Increment holds it
//     for the locate-or-insert-and-bump step and nothing else
//
// No lock is held across IO. Every value returned is a deep copy.
package memory
