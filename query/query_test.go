package query_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/l-vitaly/go-hashgraph/proto"
	"github.com/l-vitaly/go-hashgraph/query"
	"github.com/l-vitaly/go-hashgraph/query/querytest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const balanceKind = proto.KindCryptoGetAccountBalance

type balanceOp struct {
	body *proto.CryptoGetAccountBalanceQuery
}

func newBalanceOp(account *proto.AccountID) *balanceOp {
	return &balanceOp{body: &proto.CryptoGetAccountBalanceQuery{
		Header:    &proto.QueryHeader{},
		AccountID: account,
	}}
}

func (o *balanceOp) Kind() proto.Kind { return balanceKind }
func (o *balanceOp) Method() proto.Method { return proto.MethodCryptoGetBalance }
func (o *balanceOp) Header() *proto.QueryHeader { return o.body.Header }
func (o *balanceOp) Build() *proto.Query { return proto.NewCryptoGetAccountBalanceQuery(o.body) }
func (o *balanceOp) Extract(r *proto.Response) (uint64, bool) {
	if r.CryptoGetAccountBalance == nil {
		return 0, false
	}
	return r.CryptoGetAccountBalance.Balance, true
}

func (o *balanceOp) Validate() error {
	if o.body.AccountID == nil {
		return errors.New(".SetAccountID() required")
	}
	return nil
}

type correctedOp struct{ *balanceOp }

func (correctedOp) CorrectCost(raw uint64) uint64 {
	return query.CostFactor{Num: 11, Den: 10}.Apply(raw)
}

type freeOp struct{ *balanceOp }

func (freeOp) IsPaymentRequired() bool { return false }

var account = &proto.AccountID{Account: 1001}

func balanceReply(balance uint64) querytest.Reply {
	return querytest.Reply{Response: proto.NewCryptoGetAccountBalanceResponse(&proto.CryptoGetAccountBalanceResponse{
		Header:    &proto.ResponseHeader{Status: proto.StatusOK},
		AccountID: account,
		Balance:   balance,
	})}
}

func TestExecute(t *testing.T) {
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 25), balanceReply(500))
	q := query.New[uint64](newBalanceOp(account))

	balance, err := q.Execute(context.Background(), net)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)
	assert.Equal(t, query.StateSucceeded, q.State())

	calls := net.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, proto.CostAnswer, calls[0].ResponseType)
	assert.Equal(t, proto.AnswerOnly, calls[1].ResponseType)
	assert.NotNil(t, calls[1].Payment)
	assert.Equal(t, proto.MethodCryptoGetBalance, calls[1].Method)
	assert.Equal(t, []uint64{0, 25}, net.Payments())
}

func TestValidationBeforeIO(t *testing.T) {
	net := querytest.NewNetwork()
	q := query.New[uint64](newBalanceOp(nil))

	_, err := q.Execute(context.Background(), net)
	require.Error(t, err)
	assert.True(t, query.IsValidation(err))
	assert.Contains(t, err.Error(), ".SetAccountID() required")
	assert.Equal(t, query.StateFailed, q.State())

	_, err = query.New[uint64](newBalanceOp(nil)).Cost(context.Background(), net)
	assert.True(t, query.IsValidation(err))

	assert.Empty(t, net.Calls())
}

func TestCostCorrection(t *testing.T) {
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 100))
	q := query.New[uint64](correctedOp{newBalanceOp(account)})

	cost, err := q.Cost(context.Background(), net)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), cost)
	assert.Equal(t, query.StateBuilding, q.State())
}

func TestCostCorrectionAppliedOnceOnExecute(t *testing.T) {
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 100), balanceReply(1))
	q := query.New[uint64](correctedOp{newBalanceOp(account)})

	_, err := q.Execute(context.Background(), net)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 110}, net.Payments())
}

func TestCostRestoresHeader(t *testing.T) {
	op := newBalanceOp(account)
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 5))

	_, err := query.New[uint64](op).Cost(context.Background(), net)
	require.NoError(t, err)
	assert.Equal(t, proto.AnswerOnly, op.Header().ResponseType)
	assert.Nil(t, op.Header().Payment)
}

func TestCostFactor(t *testing.T) {
	f := query.CostFactor{Num: 11, Den: 10}
	for _, c := range []struct{ raw, want uint64 }{
		{0, 0},
		{3, 3},
		{10, 11},
		{100, 110},
		{999, 1098},
		{math.MaxUint64, math.MaxUint64},
	} {
		assert.Equal(t, c.want, f.Apply(c.raw), "raw %d", c.raw)
	}
}

func TestFreeQuerySkipsPayment(t *testing.T) {
	net := querytest.NewNetwork(balanceReply(7))
	q := query.New[uint64](freeOp{newBalanceOp(account)})

	cost, err := query.New[uint64](freeOp{newBalanceOp(account)}).Cost(context.Background(), net)
	require.NoError(t, err)
	assert.Zero(t, cost)

	balance, err := q.Execute(context.Background(), net)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), balance)

	calls := net.Calls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].Payment)
	assert.Empty(t, net.Payments())
}

func TestExplicitPaymentSkipsProbe(t *testing.T) {
	net := querytest.NewNetwork(balanceReply(7))
	q := query.New[uint64](newBalanceOp(account)).SetQueryPayment(42)

	_, err := q.Execute(context.Background(), net)
	require.NoError(t, err)
	assert.Len(t, net.Calls(), 1)
	assert.Equal(t, []uint64{42}, net.Payments())
}

func TestMaxPaymentExceeded(t *testing.T) {
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 1000))
	q := query.New[uint64](newBalanceOp(account)).SetMaxQueryPayment(999)

	_, err := q.Execute(context.Background(), net)
	require.Error(t, err)
	assert.True(t, query.IsMaxPaymentExceeded(err))

	var qerr *query.Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, uint64(1000), qerr.Cost)
	assert.Equal(t, uint64(999), qerr.MaxPayment)
	assert.Len(t, net.Calls(), 1)
}

func TestStatusError(t *testing.T) {
	net := querytest.NewNetwork(
		querytest.CostReply(balanceKind, 1),
		querytest.StatusReply(balanceKind, proto.StatusInvalidAccountID),
	)
	_, err := query.New[uint64](newBalanceOp(account)).Execute(context.Background(), net)
	require.Error(t, err)
	assert.True(t, query.IsStatus(err))
	status, ok := query.StatusOf(err)
	assert.True(t, ok)
	assert.Equal(t, proto.StatusInvalidAccountID, status)
}

func TestProbeStatusError(t *testing.T) {
	net := querytest.NewNetwork(querytest.StatusReply(balanceKind, proto.StatusBusy))
	_, err := query.New[uint64](newBalanceOp(account)).Cost(context.Background(), net)
	status, ok := query.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, proto.StatusBusy, status)
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	net := querytest.NewNetwork(querytest.ErrorReply(cause))

	_, err := query.New[uint64](newBalanceOp(account)).Execute(context.Background(), net)
	require.Error(t, err)
	assert.True(t, query.IsNetwork(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, query.IsStatus(err))
}

func TestMalformedResponseIsNetworkError(t *testing.T) {
	net := querytest.NewNetwork(querytest.Reply{}, querytest.Reply{Response: querytest.Header(balanceKind, nil)})

	_, err := query.New[uint64](newBalanceOp(account)).SetQueryPayment(1).Execute(context.Background(), net)
	assert.True(t, query.IsNetwork(err))

	_, err = query.New[uint64](newBalanceOp(account)).SetQueryPayment(1).Execute(context.Background(), net)
	assert.True(t, query.IsNetwork(err))
}

func TestResponseMismatchPanics(t *testing.T) {
	net := querytest.NewNetwork(
		querytest.CostReply(balanceKind, 1),
		querytest.StatusReply(proto.KindTransactionGetReceipt, proto.StatusOK),
	)
	q := query.New[uint64](newBalanceOp(account))

	assert.PanicsWithError(t, "response case not CryptoGetAccountBalance: TransactionGetReceipt", func() {
		_, _ = q.Execute(context.Background(), net)
	})
}

func TestExecuteAsyncMismatchEndsProcess(t *testing.T) {
	if os.Getenv("QUERY_ASYNC_MISMATCH") == "1" {
		net := querytest.NewNetwork(
			querytest.CostReply(balanceKind, 1),
			querytest.StatusReply(proto.KindTransactionGetReceipt, proto.StatusOK),
		)
		done := make(chan struct{})
		query.New[uint64](newBalanceOp(account)).ExecuteAsync(context.Background(), net,
			func(uint64) { fmt.Println("continued"); close(done) },
			func(error) { fmt.Println("continued"); close(done) },
		)
		<-done
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExecuteAsyncMismatchEndsProcess$")
	cmd.Env = append(os.Environ(), "QUERY_ASYNC_MISMATCH=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "want a failed process, have %v: %s", err, out)
	assert.Contains(t, string(out), "panic: response case not CryptoGetAccountBalance: TransactionGetReceipt")
	assert.NotContains(t, string(out), "continued")
}

func TestCancelledBeforeIO(t *testing.T) {
	net := querytest.NewNetwork()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := query.New[uint64](newBalanceOp(account)).Execute(ctx, net)
	assert.True(t, query.IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = query.New[uint64](newBalanceOp(account)).Cost(ctx, net)
	assert.True(t, query.IsCancelled(err))

	assert.Empty(t, net.Calls())
}

func TestExecuteOnce(t *testing.T) {
	net := querytest.NewNetwork(balanceReply(1))
	q := query.New[uint64](newBalanceOp(account)).SetQueryPayment(1)

	_, err := q.Execute(context.Background(), net)
	require.NoError(t, err)

	_, err = q.Execute(context.Background(), net)
	assert.True(t, query.IsValidation(err))
	_, err = q.Cost(context.Background(), net)
	assert.True(t, query.IsValidation(err))
	assert.Len(t, net.Calls(), 1)
}

func TestNodeSelection(t *testing.T) {
	net := querytest.NewNetwork()
	q := query.New[uint64](newBalanceOp(account)).SetNodeAccountID(proto.AccountID{Account: 99})

	_, err := q.Execute(context.Background(), net)
	assert.True(t, query.IsValidation(err))
	assert.ErrorIs(t, err, querytest.ErrUnknownNode)
	assert.Empty(t, net.Calls())
}

func TestPaymentErrorIsValidation(t *testing.T) {
	net := querytest.NewNetwork()
	net.PaymentErr = errors.New("operator required for paid queries")

	_, err := query.New[uint64](newBalanceOp(account)).Execute(context.Background(), net)
	assert.True(t, query.IsValidation(err))
	assert.Empty(t, net.Calls())
}

type outcome struct {
	val uint64
	err error
}

func classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case query.IsValidation(err):
		return "validation"
	case query.IsNetwork(err):
		return "network"
	case query.IsStatus(err):
		return "status"
	}
	return "other"
}

func TestAsyncMatchesSync(t *testing.T) {
	cause := errors.New("reset by peer")
	for name, c := range map[string]struct {
		account *proto.AccountID
		replies []querytest.Reply
	}{
		"success":    {account, []querytest.Reply{querytest.CostReply(balanceKind, 3), balanceReply(11)}},
		"validation": {nil, nil},
		"network":    {account, []querytest.Reply{querytest.ErrorReply(cause)}},
		"status":     {account, []querytest.Reply{querytest.CostReply(balanceKind, 3), querytest.StatusReply(balanceKind, proto.StatusBusy)}},
	} {
		t.Run(name, func(t *testing.T) {
			syncVal, syncErr := query.New[uint64](newBalanceOp(c.account)).
				Execute(context.Background(), querytest.NewNetwork(c.replies...))

			done := make(chan outcome, 2)
			query.New[uint64](newBalanceOp(c.account)).ExecuteAsync(
				context.Background(),
				querytest.NewNetwork(c.replies...),
				func(v uint64) { done <- outcome{val: v} },
				func(err error) { done <- outcome{err: err} },
			)
			async := <-done

			assert.Equal(t, name, classify(syncErr))
			assert.Equal(t, classify(syncErr), classify(async.err))
			assert.Equal(t, syncVal, async.val)
			if syncErr != nil {
				assert.Equal(t, syncErr.Error(), async.err.Error())
			}
		})
	}
}

func TestExecuteAsyncFiresOnce(t *testing.T) {
	for name, replies := range map[string][]querytest.Reply{
		"success": {querytest.CostReply(balanceKind, 3), balanceReply(11)},
		"network": {querytest.ErrorReply(errors.New("timeout"))},
		"status":  {querytest.StatusReply(balanceKind, proto.StatusBusy)},
	} {
		t.Run(name, func(t *testing.T) {
			var (
				mu        sync.Mutex
				successes int32
				failures  int32
				wg        sync.WaitGroup
			)
			wg.Add(1)

			// The callbacks need mu, which is held across ExecuteAsync; a
			// synchronous continuation would deadlock here.
			mu.Lock()
			query.New[uint64](newBalanceOp(account)).ExecuteAsync(
				context.Background(),
				querytest.NewNetwork(replies...),
				func(uint64) {
					mu.Lock()
					defer mu.Unlock()
					atomic.AddInt32(&successes, 1)
					wg.Done()
				},
				func(error) {
					mu.Lock()
					defer mu.Unlock()
					atomic.AddInt32(&failures, 1)
					wg.Done()
				},
			)
			mu.Unlock()
			wg.Wait()

			assert.Equal(t, int32(1), atomic.LoadInt32(&successes)+atomic.LoadInt32(&failures))
			if name == "success" {
				assert.Equal(t, int32(1), atomic.LoadInt32(&successes))
			}
		})
	}
}

func TestExecuteAsyncValidationFailsWithoutIO(t *testing.T) {
	net := querytest.NewNetwork()
	errs := make(chan error, 1)
	query.New[uint64](newBalanceOp(nil)).ExecuteAsync(context.Background(), net,
		func(uint64) { t.Error("unexpected success") },
		func(err error) { errs <- err },
	)
	assert.True(t, query.IsValidation(<-errs))
	assert.Empty(t, net.Calls())
}

func TestCostAsync(t *testing.T) {
	net := querytest.NewNetwork(querytest.CostReply(balanceKind, 100))
	costs := make(chan uint64, 1)
	query.New[uint64](correctedOp{newBalanceOp(account)}).CostAsync(context.Background(), net,
		func(c uint64) { costs <- c },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	assert.Equal(t, uint64(110), <-costs)
}

func TestFutureAwait(t *testing.T) {
	net := querytest.NewNetwork(balanceReply(9))
	f := query.New[uint64](newBalanceOp(account)).SetQueryPayment(1).Submit(context.Background(), net)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)

	<-f.Done()
	v, err = f.Result()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)
}

func TestFutureAwaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	net := querytest.NewNetwork(balanceReply(9))
	f := query.New[uint64](newBalanceOp(account)).SetQueryPayment(1).Submit(context.Background(), net)
	_, err := f.Await(ctx)
	if err != nil {
		assert.True(t, query.IsCancelled(err))
	}
	_, _ = f.Result()
}
