// Package bridge carries the target primitives over a websocket so the
// machine running the cross toolchain need not be the one attached to the
// device.
//
// A Server wraps any target.Device (typically a gdb.Target on a small board
// next to the JTAG adapter) and serves it at /target. A Client dials that
// endpoint and is itself a target.Device, so the injection pipeline runs
// unchanged against either end.
//
// Messages are JSON text frames:
//
//	-> {"id":1,"op":"poke","address":33553824,"word":1198530565}
//	<- {"id":1}
//	-> {"id":2,"op":"blx","address":33553825,"arg":10}
//	<- {"id":2,"word":5}
//	-> {"id":3,"op":"read","address":33553824,"size":4}
//	<- {"id":3,"data":"BSBwRw=="}
//
// A connection's requests are executed one at a time in arrival order, and
// the Client waits for each response before sending the next request, so
// image words are written in ascending address order.
package bridge
