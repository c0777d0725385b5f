package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goTestOutput = `=== RUN   TestAdd
--- PASS: TestAdd (0.00s)
=== RUN   TestSubtract
    calc_test.go:18: Subtract(5, 3) = 8, want 2
--- FAIL: TestSubtract (0.00s)
=== RUN   TestMultiply
--- PASS: TestMultiply (0.00s)
=== RUN   TestDivide
--- SKIP: TestDivide (0.00s)
FAIL
coverage: 72.5% of statements
exit status 1
FAIL	example.com/calc	0.012s
`

func TestParseGoTest(t *testing.T) {
	results := parseOutput(FrameworkGoTest, goTestOutput, "", 1)

	assert.Equal(t, 4, results.Total)
	assert.Equal(t, 2, results.Passed)
	assert.Equal(t, 1, results.Failed)
	assert.Equal(t, 1, results.Skipped)
	require.Len(t, results.Failures, 1)

	failure := results.Failures[0]
	assert.Equal(t, "TestSubtract", failure.Test)
	assert.Equal(t, "calc_test.go", failure.File)
	assert.Equal(t, 18, failure.Line)
	assert.Contains(t, failure.Message, "want 2")

	require.NotNil(t, results.Coverage)
	assert.InDelta(t, 72.5, results.Coverage.Percent, 0.001)
}

func TestParseGoTestAllPassing(t *testing.T) {
	output := `=== RUN   TestAdd
--- PASS: TestAdd (0.00s)
PASS
ok  	example.com/calc	0.005s
`
	results := parseOutput(FrameworkGoTest, output, "", 0)

	assert.Equal(t, 1, results.Total)
	assert.Equal(t, 1, results.Passed)
	assert.Equal(t, 0, results.Failed)
	assert.Empty(t, results.Failures)
	assert.True(t, results.AllPassed())
}

const cargoOutput = `running 3 tests
test tests::adds_numbers ... ok
test tests::subtracts_numbers ... FAILED
test tests::multiplies_numbers ... ok

failures:

---- tests::subtracts_numbers stdout ----
thread 'tests::subtracts_numbers' panicked at src/lib.rs:42:9:
assertion ` + "`left == right`" + ` failed
  left: 8
 right: 2

failures:
    tests::subtracts_numbers

test result: FAILED. 2 passed; 1 failed; 0 ignored; 0 measured; 0 filtered out
`

func TestParseCargo(t *testing.T) {
	results := parseOutput(FrameworkCargo, cargoOutput, "", 101)

	assert.Equal(t, 3, results.Total)
	assert.Equal(t, 2, results.Passed)
	assert.Equal(t, 1, results.Failed)
	require.Len(t, results.Failures, 1)

	failure := results.Failures[0]
	assert.Equal(t, "tests::subtracts_numbers", failure.Test)
	assert.Equal(t, "src/lib.rs", failure.File)
	assert.Equal(t, 42, failure.Line)
	assert.Contains(t, failure.Stack, "assertion")
}

const pytestOutput = `============================= test session starts ==============================
collected 4 items

test_calc.py::test_add PASSED                                            [ 25%]
test_calc.py::test_subtract FAILED                                       [ 50%]
test_calc.py::test_multiply PASSED                                       [ 75%]
test_calc.py::test_divide SKIPPED                                        [100%]

=================================== FAILURES ===================================
________________________________ test_subtract _________________________________
test_calc.py:12: in test_subtract
    assert subtract(5, 3) == 2
E   assert 8 == 2
=========================== short test summary info ============================
FAILED test_calc.py::test_subtract - assert 8 == 2
==================== 1 failed, 2 passed, 1 skipped in 0.04s ====================
`

func TestParsePytest(t *testing.T) {
	results := parseOutput(FrameworkPytest, pytestOutput, "", 1)

	assert.Equal(t, 4, results.Total)
	assert.Equal(t, 2, results.Passed)
	assert.Equal(t, 1, results.Failed)
	assert.Equal(t, 1, results.Skipped)
	require.Len(t, results.Failures, 1)

	failure := results.Failures[0]
	assert.Equal(t, "test_subtract", failure.Test)
	assert.Equal(t, "test_calc.py", failure.File)
	assert.Equal(t, "assert 8 == 2", failure.Message)
}

const jestOutput = `FAIL ./calc.test.js
  ● subtract returns the difference

    expect(received).toBe(expected) // Object.is equality

    Expected: 2
    Received: 8

      10 |   test('subtract returns the difference', () => {
    > 11 |     expect(subtract(5, 3)).toBe(2);
         |                            ^

Tests:       1 failed, 3 passed, 4 total
Snapshots:   0 total
Time:        0.85 s
`

func TestParseJest(t *testing.T) {
	results := parseOutput(FrameworkJest, "", jestOutput, 1)

	assert.Equal(t, 4, results.Total)
	assert.Equal(t, 3, results.Passed)
	assert.Equal(t, 1, results.Failed)
	require.Len(t, results.Failures, 1)

	failure := results.Failures[0]
	assert.Equal(t, "subtract returns the difference", failure.Test)
	assert.Contains(t, failure.Stack, "Expected: 2")
}

const jestMultiFailOutput = `FAIL ./calc.test.js
  ● Calc adds numbers

    expect(received).toBe(expected) // Object.is equality

    Expected: 5
    Received: -1

  ● Calc subtracts numbers

    expect(received).toBe(expected) // Object.is equality

    Expected: 2
    Received: 8

Tests:       2 failed, 1 passed, 3 total
Snapshots:   0 total
Time:        0.91 s
`

func TestParseJestMultipleFailures(t *testing.T) {
	results := parseOutput(FrameworkJest, "", jestMultiFailOutput, 1)

	assert.Equal(t, 2, results.Failed)
	require.Len(t, results.Failures, 2)
	assert.Equal(t, "Calc adds numbers", results.Failures[0].Test)
	assert.Equal(t, "Calc subtracts numbers", results.Failures[1].Test)
	assert.Contains(t, results.Failures[0].Stack, "Received: -1")
	assert.Contains(t, results.Failures[1].Stack, "Received: 8")
	assert.NotContains(t, results.Failures[0].Stack, "subtracts")
	assert.Equal(t, 2, results.FailureCount())
}

const mochaOutput = `  calculator
    ✓ adds numbers
    1) subtracts numbers
    ✓ multiplies numbers

  2 passing (15ms)
  1 pending
  1 failing

  1) calculator
       subtracts numbers:

      AssertionError: expected 8 to equal 2
`

func TestParseMocha(t *testing.T) {
	results := parseOutput(FrameworkMocha, mochaOutput, "", 1)

	assert.Equal(t, 2, results.Passed)
	assert.Equal(t, 1, results.Failed)
	assert.Equal(t, 1, results.Skipped)
	assert.Equal(t, 4, results.Total)
	assert.NotEmpty(t, results.Failures)
}

const vitestOutput = ` ❯ calc.test.ts (4)
   ✓ adds numbers
   × subtracts numbers
   ✓ multiplies numbers
   ✓ divides numbers

 Test Files  1 failed (1)
      Tests  1 failed | 3 passed (4)
   Start at  10:15:01
   Duration  420ms
`

func TestParseVitest(t *testing.T) {
	results := parseOutput(FrameworkVitest, vitestOutput, "", 1)

	assert.Equal(t, 4, results.Total)
	assert.Equal(t, 3, results.Passed)
	assert.Equal(t, 1, results.Failed)
	require.NotEmpty(t, results.Failures)
	assert.Equal(t, "subtracts numbers", results.Failures[0].Test)
}

func TestParseUnparseableOutput(t *testing.T) {
	results := parseOutput(FrameworkGoTest, "I apologize, something went wrong.", "stack overflow", 2)

	assert.Equal(t, 1, results.Failed)
	require.Len(t, results.Failures, 1)
	assert.Equal(t, "<unparsed output>", results.Failures[0].Test)
	assert.Contains(t, results.Failures[0].Stack, "stack overflow")
}

func TestParseCleanExitNoFailures(t *testing.T) {
	// Zero exit with nothing parsed must not fabricate a failure.
	results := parseOutput(FrameworkPytest, "no tests ran in 0.01s", "", 0)

	assert.Empty(t, results.Failures)
	assert.True(t, results.AllPassed())
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 100))

	long := "line1\nline2\nline3"
	cut := tail(long, 12)
	assert.LessOrEqual(t, len(cut), 12)
	assert.Contains(t, cut, "line3")
}
