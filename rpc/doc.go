// Package rpc serves the ledger to clients over JSON-RPC 2.0 on
// WebSocket.
//
// # Protocol
//
// Clients connect to /ws and exchange JSON-RPC 2.0 messages. Requests
// (with an id) get a response; notifications (without an id) get none.
//
//	hello          {signer}            identify the connection
//	info                               node identity and applied position
//	add_task       {title, desc?, assignee?}
//	complete_task  {id}
//	cancel_task    {id}
//	list_tasks     {status?, assignee?}
//	get_task       {id}
//	stats
//	chat           {text}              notification, relayed to all peers
//
// Views are open to any connection. Transactions require a prior hello
// and a signer the membership roster allows to write; the gateway
// stamps the connection's signer onto every submitted operation, so a
// client cannot submit on someone else's behalf. The signer is trusted
// as presented.
//
// # Server Push
//
// Every connected peer receives ledger events as JSON-RPC
// notifications, no subscription step required:
//
//	{"jsonrpc":"2.0","method":"task_update","params":{"type":"task_update","id":"task_000001","status":"completed"}}
//	{"jsonrpc":"2.0","method":"chat","params":{"type":"chat","text":"lunch?"}}
//
// Push is best-effort: a peer that cannot keep up misses events rather
// than slowing the gateway or other peers.
//
// # Errors
//
// Ledger rejections map onto JSON-RPC error codes (validation to
// -32602, unknown method to -32601, rejections to the -32000 server
// range) and the full structured error rides in the error's data field.
//
// # Liveness
//
// GET /healthz answers 200 with the node's identity and applied
// position on the same listener.
package rpc
