package linear

// config holds the hyperparameters shared by the estimators in this package.
// Each estimator reads only the fields it uses.
type config struct {
	fitIntercept bool
	lambda       float64
	alpha        float64
	ncomp        int
	maxIter      int
	tol          float64
	huberK       float64
}

// Option is a function that configures an estimator of this package
type Option func(*config)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(c *config) {
		c.fitIntercept = fit
	}
}

// WithLambda sets the penalty strength of Ridge and ElasticNet
func WithLambda(lambda float64) Option {
	return func(c *config) {
		c.lambda = lambda
	}
}

// WithAlpha sets the elastic net mixing parameter; 1 is the lasso, 0 is ridge
func WithAlpha(alpha float64) Option {
	return func(c *config) {
		c.alpha = alpha
	}
}

// WithNComp sets the number of principal components used by PCR
func WithNComp(n int) Option {
	return func(c *config) {
		c.ncomp = n
	}
}

// WithMaxIter sets the iteration limit of iterative solvers
func WithMaxIter(n int) Option {
	return func(c *config) {
		c.maxIter = n
	}
}

// WithTol sets the convergence tolerance of iterative solvers
func WithTol(tol float64) Option {
	return func(c *config) {
		c.tol = tol
	}
}

// WithHuberK sets the tuning constant of the Huber ψ function
func WithHuberK(k float64) Option {
	return func(c *config) {
		c.huberK = k
	}
}

func newConfig(defaults config, opts []Option) config {
	c := defaults
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
