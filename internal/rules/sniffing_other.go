//go:build !linux

package rules

import "errors"

func listInterfaces() ([]netInterface, error) {
	return nil, errors.New("interface listing is only supported on linux")
}
