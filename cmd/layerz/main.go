// Command layerz inspects X-Trace tokens and tracer configuration.
//
// Usage:
//
//	# Mint a token for a new trace
//	layerz token new
//
//	# Decode a token received from a peer
//	layerz token parse 2B...
//
//	# Validate a configuration file with LAYERZ_* overrides applied
//	layerz config check --config layerz.yaml
//
//	# Estimate how many new traces a configuration records
//	layerz sample --n 10000 --layer http
package main

func main() {
	Execute()
}
