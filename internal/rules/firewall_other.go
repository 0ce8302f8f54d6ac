//go:build !linux

package rules

import "errors"

func listInputChains() ([]inputChain, error) {
	return nil, errors.New("packet filter inspection is only supported on linux")
}
