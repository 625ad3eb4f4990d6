package onchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20JSON = `[
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const wrappedNativeJSON = `[
 {"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]}
]`

const routerGatewayJSON = `[
 {"type":"function","name":"swap","stateMutability":"payable","inputs":[
  {"name":"inToken","type":"address"},
  {"name":"outToken","type":"address"},
  {"name":"amountIn","type":"uint256"},
  {"name":"router","type":"address"},
  {"name":"data","type":"bytes"}],"outputs":[]}
]`

const spendParams = `{"name":"params","type":"tuple","components":[
  {"name":"id","type":"uint192"},
  {"name":"limitPrice","type":"uint256"},
  {"name":"baseAmount","type":"uint256"},
  {"name":"minQuoteAmount","type":"uint256"},
  {"name":"hookData","type":"bytes"}]}`

const bookViewerJSON = `[
 {"type":"function","name":"getExpectedOutput","stateMutability":"view","inputs":[` + spendParams + `],
  "outputs":[{"name":"takenQuoteAmount","type":"uint256"},{"name":"spentBaseAmount","type":"uint256"}]}
]`

const controllerJSON = `[
 {"type":"function","name":"spend","stateMutability":"payable","inputs":[
  {"name":"orderParamsList","type":"tuple[]","components":[
   {"name":"id","type":"uint192"},
   {"name":"limitPrice","type":"uint256"},
   {"name":"baseAmount","type":"uint256"},
   {"name":"minQuoteAmount","type":"uint256"},
   {"name":"hookData","type":"bytes"}]},
  {"name":"tokensToSettle","type":"address[]"},
  {"name":"permitParamsList","type":"tuple[]","components":[
   {"name":"token","type":"address"},
   {"name":"permitAmount","type":"uint256"},
   {"name":"signature","type":"tuple","components":[
    {"name":"deadline","type":"uint256"},
    {"name":"v","type":"uint8"},
    {"name":"r","type":"bytes32"},
    {"name":"s","type":"bytes32"}]}]},
  {"name":"deadline","type":"uint64"}],
  "outputs":[]}
]`

const multicall3JSON = `[
 {"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[
  {"name":"calls","type":"tuple[]","components":[
   {"name":"target","type":"address"},
   {"name":"allowFailure","type":"bool"},
   {"name":"callData","type":"bytes"}]}],
  "outputs":[{"name":"returnData","type":"tuple[]","components":[
   {"name":"success","type":"bool"},
   {"name":"returnData","type":"bytes"}]}]}
]`

var (
	Multicall3ABI    = mustParse(multicall3JSON)
	ERC20ABI         = mustParse(erc20JSON)
	WrappedNativeABI = mustParse(wrappedNativeJSON)
	RouterGatewayABI = mustParse(routerGatewayJSON)
	BookViewerABI    = mustParse(bookViewerJSON)
	ControllerABI    = mustParse(controllerJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
