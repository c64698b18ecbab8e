package client_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/opentracing/opentracing-go/mocktracer"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"golang.org/x/crypto/ed25519"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/l-vitaly/go-hashgraph/account"
	"github.com/l-vitaly/go-hashgraph/client"
	"github.com/l-vitaly/go-hashgraph/contract"
	"github.com/l-vitaly/go-hashgraph/nodesim"
	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
	"github.com/l-vitaly/go-hashgraph/retry"
	"github.com/l-vitaly/go-hashgraph/transaction"
	"github.com/l-vitaly/go-hashgraph/transport/fasthttp/jsonrpc"
	"github.com/l-vitaly/go-hashgraph/transportlayer"
	grpcl "github.com/l-vitaly/go-hashgraph/transportlayer/grpc"
)

var (
	node3   = proto.AccountID{Account: 3}
	node4   = proto.AccountID{Account: 4}
	holder  = proto.AccountID{Account: 1001}
	op      = client.Operator{AccountID: proto.AccountID{Account: 2}, PrivateKey: ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))}
	fastRun = retry.Policy{MaxAttempts: 5, Timeout: 5 * time.Second, MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, RetryBusy: true}
)

// network serves nodesim nodes over bufconn gRPC, one listener per node.
type network struct {
	nodes     map[string]*nodesim.Node
	listeners map[string]*bufconn.Listener
	servers   []*grpc.Server
}

func startNetwork(t *testing.T, nodes ...*nodesim.Node) *network {
	n := &network{
		nodes:     make(map[string]*nodesim.Node),
		listeners: make(map[string]*bufconn.Listener),
	}
	for _, node := range nodes {
		gs, err := node.GRPCServer()
		require.NoError(t, err)
		lis := bufconn.Listen(1 << 16)
		go func() { _ = gs.Serve(lis) }()

		name := node.AccountID().String()
		n.nodes[name] = node
		n.listeners[name] = lis
		n.servers = append(n.servers, gs)
	}
	return n
}

func (n *network) stop() {
	for _, gs := range n.servers {
		gs.Stop()
	}
}

func (n *network) client(t *testing.T, options ...client.Option) *client.Client {
	addrs := make(map[string]proto.AccountID, len(n.nodes))
	for name, node := range n.nodes {
		addrs["passthrough:///"+name] = node.AccountID()
	}
	tr := grpcl.NewTransport(grpcl.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		lis, ok := n.listeners[addr]
		if !ok {
			return nil, errors.New("no route to " + addr)
		}
		return lis.DialContext(ctx)
	})))
	c, err := client.New(addrs, append([]client.Option{
		client.WithTransport(tr),
		client.WithOperator(op),
		client.WithRetryPolicy(fastRun),
	}, options...)...)
	require.NoError(t, err)
	return c
}

func statuses(served []nodesim.Served) []proto.Status {
	out := make([]proto.Status, len(served))
	for i, s := range served {
		out[i] = s.Status
	}
	return out
}

func TestBalanceOverGRPC(t *testing.T) {
	defer leaktest.Check(t)()

	a := nodesim.New(node3).SetCost(proto.KindCryptoGetAccountBalance, 20).SetBalance(holder, 700)
	b := nodesim.New(node4).SetCost(proto.KindCryptoGetAccountBalance, 30).SetBalance(holder, 700)
	n := startNetwork(t, a, b)
	defer n.stop()
	c := n.client(t)
	defer c.Close()

	for i := 0; i < 2; i++ {
		balance, err := account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, account.Hbar(700), balance)
	}

	for node, cost := range map[*nodesim.Node]uint64{a: 20, b: 30} {
		served := node.Served()
		require.Len(t, served, 2)
		assert.Equal(t, proto.CostAnswer, served[0].ResponseType)
		assert.Zero(t, served[0].Payment)
		assert.Equal(t, proto.AnswerOnly, served[1].ResponseType)
		assert.Equal(t, cost, served[1].Payment)
	}
}

func TestBusyIsRetried(t *testing.T) {
	defer leaktest.Check(t)()

	node := nodesim.New(node3).SetBalance(holder, 1).Busy(2)
	n := startNetwork(t, node)
	defer n.stop()
	c := n.client(t)
	defer c.Close()

	_, err := account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []proto.Status{proto.StatusBusy, proto.StatusBusy, proto.StatusOK, proto.StatusOK}, statuses(node.Served()))
}

func TestBusySurfacesAsStatus(t *testing.T) {
	defer leaktest.Check(t)()

	node := nodesim.New(node3).Busy(10)
	n := startNetwork(t, node)
	defer n.stop()

	policy := fastRun
	policy.MaxAttempts = 3
	c := n.client(t, client.WithRetryPolicy(policy))
	defer c.Close()

	_, err := account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	require.Error(t, err)
	assert.True(t, query.IsStatus(err))
	status, _ := query.StatusOf(err)
	assert.Equal(t, proto.StatusBusy, status)
	assert.Len(t, node.Served(), 3)
}

func TestBusyNotRetriedWhenDisabled(t *testing.T) {
	defer leaktest.Check(t)()

	node := nodesim.New(node3).Busy(10)
	n := startNetwork(t, node)
	defer n.stop()

	policy := fastRun
	policy.RetryBusy = false
	c := n.client(t, client.WithRetryPolicy(policy))
	defer c.Close()

	_, err := transaction.NewReceiptQuery().SetTransactionID(proto.TransactionID{AccountID: &holder}).Execute(context.Background(), c)
	assert.True(t, query.IsStatus(err))
	assert.Len(t, node.Served(), 1)
}

func TestUnreachableNodeIsNetworkError(t *testing.T) {
	defer leaktest.Check(t)()

	n := &network{
		nodes:     map[string]*nodesim.Node{"0.0.3": nodesim.New(node3)},
		listeners: map[string]*bufconn.Listener{},
	}
	policy := fastRun
	policy.MaxAttempts = 2
	c := n.client(t, client.WithRetryPolicy(policy))
	defer c.Close()

	_, err := account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	require.Error(t, err)
	assert.True(t, query.IsNetwork(err))
}

func TestPaidQueryWithoutOperator(t *testing.T) {
	defer leaktest.Check(t)()

	txID := proto.TransactionID{AccountID: &holder}
	node := nodesim.New(node3).SetReceipt(txID, &proto.TransactionReceipt{Status: proto.StatusSuccess})
	n := startNetwork(t, node)
	defer n.stop()

	addrs := map[string]proto.AccountID{"passthrough:///0.0.3": node3}
	c, err := client.New(addrs, client.WithTransport(grpcl.NewTransport(grpcl.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return n.listeners["0.0.3"].DialContext(ctx)
		}),
	))))
	require.NoError(t, err)
	defer c.Close()

	_, err = account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	assert.True(t, query.IsValidation(err))
	assert.Contains(t, err.Error(), "operator required for paid queries")

	receipt, err := transaction.NewReceiptQuery().SetTransactionID(txID).Execute(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, proto.StatusSuccess, receipt.Status)
}

func TestMisansweringNodePanics(t *testing.T) {
	defer leaktest.Check(t)()

	node := nodesim.New(node3).Misanswer(proto.KindTransactionGetReceipt)
	n := startNetwork(t, node)
	defer n.stop()
	c := n.client(t)
	defer c.Close()

	q := account.NewBalanceQuery().SetAccountID(holder).SetQueryPayment(1)
	assert.PanicsWithError(t, "response case not CryptoGetAccountBalance: TransactionGetReceipt", func() {
		_, _ = q.Execute(context.Background(), c)
	})
}

func TestCancelledQuery(t *testing.T) {
	n := startNetwork(t, nodesim.New(node3))
	defer n.stop()
	c := n.client(t)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := account.NewBalanceQuery().SetAccountID(holder).Execute(ctx, c)
	assert.True(t, query.IsCancelled(err))
}

func TestBusyAnswersKeepTheirStatus(t *testing.T) {
	node := nodesim.New(node3).Busy(10)
	n := startNetwork(t, node)
	defer n.stop()

	reg := stdprometheus.NewRegistry()
	h, err := client.NewPrometheusMetrics(reg, "ledger")
	require.NoError(t, err)
	tracer := mocktracer.New()
	policy := fastRun
	policy.MaxAttempts = 3
	c := n.client(t, client.WithRetryPolicy(policy), client.WithDuration(h), client.WithTracer(tracer))
	defer c.Close()

	_, err = account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	require.True(t, query.IsStatus(err))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	observed := map[string]uint64{}
	for _, m := range families[0].GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" {
				observed[l.GetValue()] += m.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, map[string]uint64{"BUSY": 3}, observed)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "BUSY", spans[0].Tag(transportlayer.StatusTag))
	assert.Nil(t, spans[0].Tag("error"))
}

func TestPrometheusMetrics(t *testing.T) {
	node := nodesim.New(node3).SetBalance(holder, 5)
	n := startNetwork(t, node)
	defer n.stop()

	reg := stdprometheus.NewRegistry()
	h, err := client.NewPrometheusMetrics(reg, "ledger")
	require.NoError(t, err)
	c := n.client(t, client.WithDuration(h))
	defer c.Close()

	_, err = account.NewBalanceQuery().SetAccountID(holder).Execute(context.Background(), c)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "ledger_client_request_duration_seconds", families[0].GetName())
	var count uint64
	for _, m := range families[0].GetMetric() {
		count += m.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(2), count)

	_, err = client.NewPrometheusMetrics(reg, "ledger")
	assert.Error(t, err)
}

func TestSelectNode(t *testing.T) {
	c, err := client.New(map[string]proto.AccountID{"b:50211": node4, "a:50211": node3})
	require.NoError(t, err)
	defer c.Close()

	var got []proto.AccountID
	for i := 0; i < 4; i++ {
		id, err := c.SelectNode(nil)
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []proto.AccountID{node3, node4, node3, node4}, got)

	id, err := c.SelectNode(&node4)
	require.NoError(t, err)
	assert.Equal(t, node4, id)

	_, err = c.SelectNode(&holder)
	assert.ErrorIs(t, err, client.ErrUnknownNode)

	_, err = client.New(nil)
	assert.Equal(t, client.ErrNoNodes, err)
	_, err = client.New(map[string]proto.AccountID{"a": node3, "b": node3})
	assert.Error(t, err)
}

func TestUnknownNodeIsValidationError(t *testing.T) {
	c, err := client.New(map[string]proto.AccountID{"a:50211": node3}, client.WithOperator(op))
	require.NoError(t, err)
	defer c.Close()

	_, err = account.NewBalanceQuery().SetAccountID(holder).SetNodeAccountID(node4).Execute(context.Background(), c)
	assert.True(t, query.IsValidation(err))
	assert.ErrorIs(t, err, client.ErrUnknownNode)
}

func TestContractCallOverJSONRPC(t *testing.T) {
	cid := proto.ContractID{Contract: 1002}
	node := nodesim.New(node3).
		SetCost(proto.KindContractCallLocal, 100).
		SetContract(cid, func(params []byte, gas int64) ([]byte, uint64, string) {
			want, _ := contract.NewFunctionParams().AddUint64(7).Encode("square")
			if string(params) != string(want) {
				return nil, 0, "bad call"
			}
			result := make([]byte, 32)
			result[31] = 49
			return result, 21000, ""
		})

	h, err := node.HTTPHandler()
	require.NoError(t, err)
	l := fasthttputil.NewInmemoryListener()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fasthttp.Serve(l, h)
	}()
	defer func() {
		_ = l.Close()
		<-done
	}()

	tr := jsonrpc.NewTransport(jsonrpc.WithHTTPClient(&fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return l.Dial() },
	}))
	c, err := client.New(map[string]proto.AccountID{"node3": node3}, client.WithTransport(tr), client.WithOperator(op))
	require.NoError(t, err)
	defer c.Close()

	res, err := contract.NewCallQuery().
		SetContractID(cid).
		SetGas(30000).
		SetFunctionWithParams("square", contract.NewFunctionParams().AddUint64(7)).
		Execute(context.Background(), c)
	require.NoError(t, err)

	v, err := res.GetUint256(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(49), v.Uint64())
	assert.Equal(t, uint64(21000), res.GasUsed)

	served := node.Served()
	require.Len(t, served, 2)
	assert.Equal(t, uint64(110), served[1].Payment)

	_, err = contract.NewCallQuery().SetContractID(cid).SetGas(30000).SetFunction("square").Execute(context.Background(), c)
	status, ok := query.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, proto.StatusContractRevertExecuted, status)
}
