/*
Package mqtt implements the core of an MQTT v3.1.1 client meant to run over a
byte-oriented transport such as a TCP socket surfaced by a cellular AT-modem
stack. The core owns the connection state machine, the incremental packet
parser, the fixed-header/varint encoder, the request tracking table used to
correlate QoS>0 acknowledgements, and the keep-alive timer.

The transport that actually dials, sends, and receives bytes is external to
this package: callers implement Transport and drive Client through its
On* methods from whatever event loop the transport uses. See internal/tcptransport
for a net.Conn-backed implementation usable outside of a cellular modem context.
*/
package mqtt
