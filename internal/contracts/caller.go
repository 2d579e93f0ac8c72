package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/greendex-labs/greendex-gateway/internal/ethrpc"
)

// Contract binds a parsed ABI and a deployed address to the RPC client so view
// calls and calldata packing share one code path.
type Contract struct {
	ABI     abi.ABI
	Address common.Address
	rpc     *ethrpc.Client
}

func Bind(parsed abi.ABI, addr common.Address, rpc *ethrpc.Client) *Contract {
	return &Contract{ABI: parsed, Address: addr, rpc: rpc}
}

// Pack encodes calldata for a method
func (c *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Call performs an eth_call and returns the unpacked outputs
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := c.rpc.CallContract(ctx, ethrpc.CallMsg{To: c.Address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	vals, err := c.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// AddressBook holds the deployed addresses of the exchange contracts
type AddressBook struct {
	Orderbook      common.Address
	CreditToken    common.Address
	USDC           common.Address
	WrapperFactory common.Address
	AMMFactory     common.Address
	AMMRouter      common.Address
}

// ParseAddressBook validates the configured hex addresses. Every contract is
// required; a gateway with a partial deployment would fail on first use anyway.
func ParseAddressBook(orderbook, creditToken, usdc, wrapperFactory, ammFactory, ammRouter string) (*AddressBook, error) {
	book := &AddressBook{}
	for _, entry := range []struct {
		name string
		hex  string
		dst  *common.Address
	}{
		{"orderbook", orderbook, &book.Orderbook},
		{"credit token", creditToken, &book.CreditToken},
		{"usdc", usdc, &book.USDC},
		{"wrapper factory", wrapperFactory, &book.WrapperFactory},
		{"amm factory", ammFactory, &book.AMMFactory},
		{"amm router", ammRouter, &book.AMMRouter},
	} {
		if !common.IsHexAddress(entry.hex) {
			return nil, fmt.Errorf("invalid %s address: %q", entry.name, entry.hex)
		}
		*entry.dst = common.HexToAddress(entry.hex)
	}
	return book, nil
}
