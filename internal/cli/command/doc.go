// Package command defines the tally-cli commands on urfave/cli/v2.
//
//	tally-cli account create [--save]
//	tally-cli account show [TOKEN]
//	tally-cli counter create NAME
//	tally-cli counter list
//	tally-cli counter show ID
//	tally-cli counter inc ID [--date YYYY-MM-DD]
//	tally-cli system health
//	tally-cli system version
//
// Counter commands act on the account named by --token, TALLY_TOKEN or the
// token saved in the CLI config file, in that order.
package command
