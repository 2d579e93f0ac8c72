package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func mustParse(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid %s ABI: %v", name, err))
	}
	return parsed
}

// Parsed ABIs for every contract the gateway talks to.
var (
	ERC20ABI          = mustParse("erc20", erc20JSON)
	CreditTokenABI    = mustParse("creditToken", creditTokenJSON)
	OrderbookABI      = mustParse("orderbook", orderbookJSON)
	WrapperFactoryABI = mustParse("wrapperFactory", wrapperFactoryJSON)
	WrapperABI        = mustParse("wrapper", wrapperJSON)
	FaucetABI         = mustParse("faucet", faucetJSON)
	AMMFactoryABI     = mustParse("ammFactory", ammFactoryJSON)
	PairABI           = mustParse("pair", pairJSON)
	RouterABI         = mustParse("router", routerJSON)
)

const erc20JSON = `[
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"type":"uint8"}]},
{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`

const creditTokenJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
{"type":"function","name":"isUserTokenFrozen","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"isRevoked","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`

const orderbookJSON = `[
{"type":"function","name":"nextOrderId","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"orderActive","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"type":"bool"}]},
{"type":"function","name":"orders","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[
 {"name":"maker","type":"address"},
 {"name":"tokenId","type":"uint256"},
 {"name":"isBuy","type":"bool"},
 {"name":"price","type":"uint256"},
 {"name":"amount","type":"uint256"},
 {"name":"filled","type":"uint256"},
 {"name":"expiration","type":"uint256"},
 {"name":"minAmountOut","type":"uint256"},
 {"name":"referrer","type":"address"}]},
{"type":"function","name":"placeOrder","stateMutability":"nonpayable","inputs":[
 {"name":"tokenId","type":"uint256"},
 {"name":"isBuy","type":"bool"},
 {"name":"price","type":"uint256"},
 {"name":"amount","type":"uint256"},
 {"name":"expiration","type":"uint256"},
 {"name":"minAmountOut","type":"uint256"},
 {"name":"referrer","type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"fillOrder","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"cancelOrder","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]}
]`

const wrapperFactoryJSON = `[
{"type":"function","name":"wrapperOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"type":"address"}]},
{"type":"function","name":"totalWrappers","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"allWrappers","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"type":"address"}]},
{"type":"function","name":"createWrapper","stateMutability":"nonpayable","inputs":[
 {"name":"tokenId","type":"uint256"},
 {"name":"name","type":"string"},
 {"name":"symbol","type":"string"}],"outputs":[{"type":"address"}]}
]`

const wrapperJSON = `[
{"type":"function","name":"tokenId","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"type":"string"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"wrap","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"unwrap","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const faucetJSON = `[
{"type":"function","name":"faucet","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"faucetAmount","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"faucetCooldown","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"getFaucetInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[
 {"name":"amount","type":"uint256"},
 {"name":"cooldown","type":"uint256"},
 {"name":"lastClaim","type":"uint256"},
 {"name":"canClaim","type":"bool"}]}
]`

const ammFactoryJSON = `[
{"type":"function","name":"getPair","stateMutability":"view","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"outputs":[{"type":"address"}]},
{"type":"function","name":"allPairsLength","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
{"type":"function","name":"allPairs","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"type":"address"}]}
]`

const pairJSON = `[
{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"token1","stateMutability":"view","inputs":[],"outputs":[{"type":"address"}]},
{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],"outputs":[
 {"name":"reserve0","type":"uint112"},
 {"name":"reserve1","type":"uint112"},
 {"name":"blockTimestampLast","type":"uint32"}]}
]`

const routerJSON = `[
{"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[
 {"name":"amountIn","type":"uint256"},
 {"name":"amountOutMin","type":"uint256"},
 {"name":"path","type":"address[]"},
 {"name":"to","type":"address"},
 {"name":"deadline","type":"uint256"}],"outputs":[{"type":"uint256[]"}]},
{"type":"function","name":"addLiquidity","stateMutability":"nonpayable","inputs":[
 {"name":"tokenA","type":"address"},
 {"name":"tokenB","type":"address"},
 {"name":"amountADesired","type":"uint256"},
 {"name":"amountBDesired","type":"uint256"},
 {"name":"amountAMin","type":"uint256"},
 {"name":"amountBMin","type":"uint256"},
 {"name":"to","type":"address"},
 {"name":"deadline","type":"uint256"}],"outputs":[{"type":"uint256"},{"type":"uint256"},{"type":"uint256"}]},
{"type":"function","name":"removeLiquidity","stateMutability":"nonpayable","inputs":[
 {"name":"tokenA","type":"address"},
 {"name":"tokenB","type":"address"},
 {"name":"liquidity","type":"uint256"},
 {"name":"amountAMin","type":"uint256"},
 {"name":"amountBMin","type":"uint256"},
 {"name":"to","type":"address"},
 {"name":"deadline","type":"uint256"}],"outputs":[{"type":"uint256"},{"type":"uint256"}]}
]`
