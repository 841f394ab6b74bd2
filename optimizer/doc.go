// Package optimizer trains per-learner scheduling weights from historical
// review logs.
//
// It provides two main capabilities:
//
//   - [Optimizer.ComputeOptimalWeights] trains the 13 scheduling weights
//     using mini-batch gradient descent with the [Adam] optimizer and
//     [CosineAnnealing] learning rate schedule. Gradients are computed via
//     numerical central differences on binary cross-entropy loss.
//
//   - [Optimizer.ComputeOptimalRetention] finds the target retention value
//     that minimizes total review cost via Monte Carlo simulation.
//
// # Usage
//
//	opt := optimizer.NewOptimizer(optimizer.OptimizerConfig{})
//	weights, err := opt.ComputeOptimalWeights(ctx, logs)
//	retention, err := opt.ComputeOptimalRetention(ctx, weights, logs)
//
// # Data Requirements
//
// Weight optimization requires enough cross-day reviews (at least
// MiniBatchSize, default 512). Optimal retention additionally requires
// ReviewDuration to be set on all review logs.
package optimizer
