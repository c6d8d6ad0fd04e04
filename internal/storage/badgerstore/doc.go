// Package badgerstore keeps accounts in an embedded Badger database.
//
// Keys:
//
//	acct/<token>                   account record (created_at, counter sequence)
//	ctr/<len(token)>:<token>/<id>  counter with all its entries
//
// Each operation is one Badger transaction with conflict detection on.
// Transactions that lose a conflict are retried with backoff.
package badgerstore
