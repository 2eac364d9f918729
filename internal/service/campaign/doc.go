// Package campaign resolves the campaigns and tracked links that inbound
// tracking hits refer to.
//
// Tracking only ever reads campaigns. Campaigns queued for deletion are
// treated as missing so late hits on them never record anything.
//
// Repository implementations live in repository/postgres/.
package campaign
