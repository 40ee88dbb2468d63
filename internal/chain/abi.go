package chain

// procurementABI covers the procurement contract methods the client calls.
const procurementABI = `[
	{"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"biddingEndTime","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"ended","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_bidder","type":"address"}],"name":"checkIfWhitelisted","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getWhitelist","outputs":[{"name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getBids","outputs":[{"name":"","type":"bytes[]"},{"name":"","type":"bytes[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_bidder","type":"address"}],"name":"whitelistBidder","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"_bidder","type":"address"}],"name":"removeWhitelistBidder","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"_duration","type":"uint256"}],"name":"setBidDuration","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"_encryptedBid","type":"bytes"}],"name":"submitBid","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"endBidding","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// factoryABI covers the factory methods the client calls.
const factoryABI = `[
	{"inputs":[{"name":"_owner","type":"address"}],"name":"getContractsByOwner","outputs":[{"name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"createProcurementContract","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`
