/*
Package export writes and reads model statements as CSV.

PURPOSE:
  Each statement has a fixed column schema. Downstream spreadsheets depend
  on these headers, so the schema is a compatibility contract: columns are
  only ever appended.

FORMAT:
  - one header row, then one row per projection year
  - money and credit volumes with two decimals, the discount rate with six
  - DSCR with four decimals, IRR with six
  - undefined values as the sentinels "N/A" and "> horizon", never as 0

ROUND TRIP:
  ParseCSV(WriteCSV(model)) reproduces every value to two decimals, so
  writing the parsed model again yields identical bytes.
*/
package export

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
)

// Statement names an exportable table.
type Statement string

const (
	StatementIncome   Statement = "income"
	StatementBalance  Statement = "balance"
	StatementCashFlow Statement = "cashflow"
	StatementDebt     Statement = "debt"
	StatementCarbon   Statement = "carbon"
	StatementReturns  Statement = "returns"
	StatementSummary  Statement = "summary"
)

// Statements lists every exportable statement in display order.
func Statements() []Statement {
	return []Statement{
		StatementIncome,
		StatementBalance,
		StatementCashFlow,
		StatementDebt,
		StatementCarbon,
		StatementReturns,
		StatementSummary,
	}
}

// ParseStatement validates a statement name from a URL or flag.
func ParseStatement(s string) (Statement, error) {
	st := Statement(s)
	if _, ok := tables[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}
	return st, nil
}

// Headers returns the column headers of a statement.
func Headers(s Statement) ([]string, error) {
	t, ok := tables[s]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}
	return t.header(), nil
}

// =============================================================================
// COLUMNS
// =============================================================================

type column[T any] struct {
	header string
	get    func(*T) string
	set    func(*T, string) error
}

func yearCol[T any](f func(*T) *int) column[T] {
	return column[T]{
		header: "year",
		get:    func(r *T) string { return strconv.Itoa(*f(r)) },
		set: func(r *T, s string) error {
			v, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			*f(r) = v
			return nil
		},
	}
}

func amountCol[T any](header string, f func(*T) *decimal.Decimal) column[T] {
	return fixedCol(header, 2, f)
}

func fixedCol[T any](header string, places int32, f func(*T) *decimal.Decimal) column[T] {
	return column[T]{
		header: header,
		get:    func(r *T) string { return f(r).StringFixed(places) },
		set: func(r *T, s string) error {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return err
			}
			*f(r) = v
			return nil
		},
	}
}

func ratioCol[T any](header string, f func(*T) *engine.Ratio) column[T] {
	return column[T]{
		header: header,
		get:    func(r *T) string { return f(r).String() },
		set: func(r *T, s string) (err error) {
			*f(r), err = engine.ParseRatio(s)
			return err
		},
	}
}

func rateCol[T any](header string, f func(*T) *engine.Rate) column[T] {
	return column[T]{
		header: header,
		get:    func(r *T) string { return f(r).String() },
		set: func(r *T, s string) (err error) {
			*f(r), err = engine.ParseRate(s)
			return err
		},
	}
}

func paybackCol[T any](header string, f func(*T) *engine.Payback) column[T] {
	return column[T]{
		header: header,
		get:    func(r *T) string { return f(r).String() },
		set: func(r *T, s string) (err error) {
			*f(r), err = engine.ParsePayback(s)
			return err
		},
	}
}

// =============================================================================
// TABLES
// =============================================================================

type table interface {
	header() []string
	records(m *engine.Model) [][]string
	load(m *engine.Model, records [][]string) error
}

type schema[T any] struct {
	columns []column[T]
	rows    func(*engine.Model) []T
	store   func(*engine.Model, []T)
}

func (s schema[T]) header() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.header
	}
	return out
}

func (s schema[T]) records(m *engine.Model) [][]string {
	rows := s.rows(m)
	out := make([][]string, len(rows))
	for i := range rows {
		rec := make([]string, len(s.columns))
		for j, c := range s.columns {
			rec[j] = c.get(&rows[i])
		}
		out[i] = rec
	}
	return out
}

func (s schema[T]) load(m *engine.Model, records [][]string) error {
	rows := make([]T, len(records))
	for i, rec := range records {
		if len(rec) != len(s.columns) {
			return &ParseError{Line: i + 2, Message: fmt.Sprintf("expected %d fields, got %d", len(s.columns), len(rec))}
		}
		for j, c := range s.columns {
			if err := c.set(&rows[i], rec[j]); err != nil {
				return &ParseError{Line: i + 2, Column: c.header, Message: err.Error()}
			}
		}
	}
	s.store(m, rows)
	return nil
}

// fcfeRow is one year of the returns table.
type fcfeRow struct {
	Year       int
	FCFE       decimal.Decimal
	Cumulative decimal.Decimal
}

var tables = map[Statement]table{
	StatementIncome: schema[engine.IncomeStatement]{
		rows:  func(m *engine.Model) []engine.IncomeStatement { return m.IncomeStatements },
		store: func(m *engine.Model, r []engine.IncomeStatement) { m.IncomeStatements = r },
		columns: []column[engine.IncomeStatement]{
			yearCol(func(r *engine.IncomeStatement) *int { return &r.Year }),
			amountCol("credits_generated", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.CreditsGenerated }),
			amountCol("credits_issued", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.CreditsIssued }),
			amountCol("price_per_credit", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.PricePerCredit }),
			amountCol("purchased_credits", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.PurchasedCredits }),
			amountCol("implied_purchase_price", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.ImpliedPurchasePrice }),
			amountCol("spot_revenue", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.SpotRevenue }),
			amountCol("pre_purchase_revenue", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.PrePurchaseRevenue }),
			amountCol("total_revenue", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.TotalRevenue }),
			amountCol("cogs", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.COGS }),
			amountCol("gross_profit", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.GrossProfit }),
			amountCol("feasibility_costs", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.FeasibilityCosts }),
			amountCol("pdd_costs", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.PDDCosts }),
			amountCol("mrv_costs", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.MRVCosts }),
			amountCol("staff_costs", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.StaffCosts }),
			amountCol("total_opex", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.TotalOpex }),
			amountCol("ebitda", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.EBITDA }),
			amountCol("depreciation", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.Depreciation }),
			amountCol("ebit", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.EBIT }),
			amountCol("interest_expense", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.InterestExpense }),
			amountCol("earnings_before_tax", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.EarningsBeforeTax }),
			amountCol("income_tax", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.IncomeTax }),
			amountCol("net_income", func(r *engine.IncomeStatement) *decimal.Decimal { return &r.NetIncome }),
		},
	},

	StatementBalance: schema[engine.BalanceSheet]{
		rows:  func(m *engine.Model) []engine.BalanceSheet { return m.BalanceSheets },
		store: func(m *engine.Model, r []engine.BalanceSheet) { m.BalanceSheets = r },
		columns: []column[engine.BalanceSheet]{
			yearCol(func(r *engine.BalanceSheet) *int { return &r.Year }),
			amountCol("cash", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.Cash }),
			amountCol("accounts_receivable", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.AccountsReceivable }),
			amountCol("ppe_net", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.PPENet }),
			amountCol("total_assets", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.TotalAssets }),
			amountCol("accounts_payable", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.AccountsPayable }),
			amountCol("unearned_revenue", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.UnearnedRevenue }),
			amountCol("debt_balance", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.DebtBalance }),
			amountCol("total_liabilities", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.TotalLiabilities }),
			amountCol("contributed_capital", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.ContributedCapital }),
			amountCol("retained_earnings", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.RetainedEarnings }),
			amountCol("total_equity", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.TotalEquity }),
			amountCol("total_liabilities_and_equity", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.TotalLiabilitiesAndEquity }),
			amountCol("balance_check", func(r *engine.BalanceSheet) *decimal.Decimal { return &r.BalanceCheck }),
		},
	},

	StatementCashFlow: schema[engine.CashFlowStatement]{
		rows:  func(m *engine.Model) []engine.CashFlowStatement { return m.CashFlows },
		store: func(m *engine.Model, r []engine.CashFlowStatement) { m.CashFlows = r },
		columns: []column[engine.CashFlowStatement]{
			yearCol(func(r *engine.CashFlowStatement) *int { return &r.Year }),
			amountCol("net_income", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.NetIncome }),
			amountCol("depreciation", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.Depreciation }),
			amountCol("change_accounts_receivable", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.ChangeAccountsReceivable }),
			amountCol("change_accounts_payable", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.ChangeAccountsPayable }),
			amountCol("unearned_revenue_released", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.UnearnedRevenueReleased }),
			amountCol("operating_cash_flow", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.OperatingCashFlow }),
			amountCol("capex", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.Capex }),
			amountCol("investing_cash_flow", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.InvestingCashFlow }),
			amountCol("equity_injection", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.EquityInjection }),
			amountCol("debt_draw", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.DebtDraw }),
			amountCol("debt_principal_payment", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.DebtPrincipalPayment }),
			amountCol("purchase_amount", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.PurchaseAmount }),
			amountCol("financing_cash_flow", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.FinancingCashFlow }),
			amountCol("cash_start", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.CashStart }),
			amountCol("net_change_cash", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.NetChangeCash }),
			amountCol("cash_end", func(r *engine.CashFlowStatement) *decimal.Decimal { return &r.CashEnd }),
		},
	},

	StatementDebt: schema[engine.DebtYear]{
		rows:  func(m *engine.Model) []engine.DebtYear { return m.DebtSchedule },
		store: func(m *engine.Model, r []engine.DebtYear) { m.DebtSchedule = r },
		columns: []column[engine.DebtYear]{
			yearCol(func(r *engine.DebtYear) *int { return &r.Year }),
			amountCol("beginning_balance", func(r *engine.DebtYear) *decimal.Decimal { return &r.BeginningBalance }),
			amountCol("draw", func(r *engine.DebtYear) *decimal.Decimal { return &r.Draw }),
			amountCol("principal_payment", func(r *engine.DebtYear) *decimal.Decimal { return &r.PrincipalPayment }),
			amountCol("ending_balance", func(r *engine.DebtYear) *decimal.Decimal { return &r.EndingBalance }),
			amountCol("interest_expense", func(r *engine.DebtYear) *decimal.Decimal { return &r.InterestExpense }),
			amountCol("debt_service", func(r *engine.DebtYear) *decimal.Decimal { return &r.DebtService }),
			ratioCol("dscr", func(r *engine.DebtYear) *engine.Ratio { return &r.DSCR }),
		},
	},

	StatementCarbon: schema[engine.CarbonYear]{
		rows:  func(m *engine.Model) []engine.CarbonYear { return m.CarbonStream },
		store: func(m *engine.Model, r []engine.CarbonYear) { m.CarbonStream = r },
		columns: []column[engine.CarbonYear]{
			yearCol(func(r *engine.CarbonYear) *int { return &r.Year }),
			amountCol("credits_generated", func(r *engine.CarbonYear) *decimal.Decimal { return &r.CreditsGenerated }),
			amountCol("credits_issued", func(r *engine.CarbonYear) *decimal.Decimal { return &r.CreditsIssued }),
			amountCol("cumulative_generated", func(r *engine.CarbonYear) *decimal.Decimal { return &r.CumulativeGenerated }),
			amountCol("cumulative_issued", func(r *engine.CarbonYear) *decimal.Decimal { return &r.CumulativeIssued }),
			amountCol("purchase_amount", func(r *engine.CarbonYear) *decimal.Decimal { return &r.PurchaseAmount }),
			amountCol("implied_purchase_price", func(r *engine.CarbonYear) *decimal.Decimal { return &r.ImpliedPurchasePrice }),
			amountCol("purchased_credits", func(r *engine.CarbonYear) *decimal.Decimal { return &r.PurchasedCredits }),
			amountCol("purchased_credits_delivered", func(r *engine.CarbonYear) *decimal.Decimal { return &r.PurchasedCreditsDelivered }),
			amountCol("spot_credits", func(r *engine.CarbonYear) *decimal.Decimal { return &r.SpotCredits }),
			amountCol("unearned_revenue_start", func(r *engine.CarbonYear) *decimal.Decimal { return &r.UnearnedRevenueStart }),
			amountCol("unearned_revenue_added", func(r *engine.CarbonYear) *decimal.Decimal { return &r.UnearnedRevenueAdded }),
			amountCol("unearned_revenue_released", func(r *engine.CarbonYear) *decimal.Decimal { return &r.UnearnedRevenueReleased }),
			amountCol("unearned_revenue_end", func(r *engine.CarbonYear) *decimal.Decimal { return &r.UnearnedRevenueEnd }),
		},
	},

	StatementReturns: schema[fcfeRow]{
		rows: func(m *engine.Model) []fcfeRow {
			out := make([]fcfeRow, len(m.Returns.FCFToEquity))
			for i := range out {
				out[i] = fcfeRow{FCFE: m.Returns.FCFToEquity[i], Cumulative: m.Returns.CumulativeFCFE[i]}
				if i < len(m.Years) {
					out[i].Year = m.Years[i]
				}
			}
			return out
		},
		store: func(m *engine.Model, rows []fcfeRow) {
			m.Years = make([]int, len(rows))
			m.Returns.FCFToEquity = make([]decimal.Decimal, len(rows))
			m.Returns.CumulativeFCFE = make([]decimal.Decimal, len(rows))
			for i, r := range rows {
				m.Years[i] = r.Year
				m.Returns.FCFToEquity[i] = r.FCFE
				m.Returns.CumulativeFCFE[i] = r.Cumulative
			}
		},
		columns: []column[fcfeRow]{
			yearCol(func(r *fcfeRow) *int { return &r.Year }),
			amountCol("fcf_to_equity", func(r *fcfeRow) *decimal.Decimal { return &r.FCFE }),
			amountCol("cumulative_fcfe", func(r *fcfeRow) *decimal.Decimal { return &r.Cumulative }),
		},
	},

	StatementSummary: schema[engine.Returns]{
		rows: func(m *engine.Model) []engine.Returns { return []engine.Returns{m.Returns} },
		store: func(m *engine.Model, rows []engine.Returns) {
			if len(rows) > 0 {
				m.Returns.DiscountRate = rows[0].DiscountRate
				m.Returns.InitialEquity = rows[0].InitialEquity
				m.Returns.NPV = rows[0].NPV
				m.Returns.IRR = rows[0].IRR
				m.Returns.PaybackPeriod = rows[0].PaybackPeriod
			}
		},
		columns: []column[engine.Returns]{
			fixedCol("discount_rate", 6, func(r *engine.Returns) *decimal.Decimal { return &r.DiscountRate }),
			amountCol("initial_equity", func(r *engine.Returns) *decimal.Decimal { return &r.InitialEquity }),
			amountCol("npv", func(r *engine.Returns) *decimal.Decimal { return &r.NPV }),
			rateCol("irr", func(r *engine.Returns) *engine.Rate { return &r.IRR }),
			paybackCol("payback_period", func(r *engine.Returns) *engine.Payback { return &r.PaybackPeriod }),
		},
	},
}
