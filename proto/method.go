package proto

// Package is the protobuf package the ledger services live in.
const Package = "proto"

// Method names one remote procedure of a ledger service.
type Method struct {
	Service string
	Name    string
}

// QualifiedService is the fully qualified gRPC service name.
func (m Method) QualifiedService() string {
	return Package + "." + m.Service
}

// RPCName is the method name used by JSON-RPC style transports.
func (m Method) RPCName() string {
	return m.Service + "." + m.Name
}

func (m Method) String() string {
	return "/" + m.QualifiedService() + "/" + m.Name
}

var (
	MethodContractCallLocal = Method{Service: "SmartContractService", Name: "contractCallLocalMethod"}
	MethodCryptoGetBalance  = Method{Service: "CryptoService", Name: "cryptoGetBalance"}
	MethodGetReceipt        = Method{Service: "CryptoService", Name: "getTransactionReceipts"}
)

// Methods lists every method by the query kind it serves.
var Methods = map[Kind]Method{
	KindContractCallLocal:       MethodContractCallLocal,
	KindCryptoGetAccountBalance: MethodCryptoGetBalance,
	KindTransactionGetReceipt:   MethodGetReceipt,
}
