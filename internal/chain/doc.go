// Manual end-to-end scenarios.
//
// The following are exercised against a live anvil instance, not by this
// package's unit tests (those run against fakeProvider/fakeRepo and have
// no access to a real chain or block production):
//
//   - submit a transfer, mine a block, confirm the request reports
//     mined=true with the originally broadcast hash.
//   - submit a transfer, stall block production past block_frequency
//     ticks, confirm a re-broadcast with strictly higher fees, then mine
//     it and confirm the request settles on the replacement hash.
//   - submit two requests back to back, confirm both land with
//     consecutive nonces from the same account.
//   - kill the RPC connection mid-subscription, confirm the monitor's
//     Run loop returns a FatalError and Facade.Healthy flips to false.
package chain
