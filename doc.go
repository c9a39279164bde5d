// Package forestcover spot-checks a battery of classifiers on the Kaggle
// Forest Cover Type data and writes one submission file per model.
//
// The command lives in cmd/forestcover. The rest of the module is the
// scikit-learn style library it runs on:
//
//   - core/model: estimator interfaces, fitted-state tracking, label helpers
//   - preprocessing: StandardScaler and MinMaxScaler
//   - pipeline: named transformer chains ending in an estimator
//   - model_selection: KFold, TrainTestSplit, CrossValScore
//   - metrics: accuracy, confusion matrix, per-class report
//   - sklearn/...: LogisticRegression, LDA, KNN, CART, GaussianNB, SVC and
//     the AdaBoost, gradient boosting, random forest and extra-trees ensembles
//   - datasets: CSV frames, train/validation split, submissions
//   - summary: correlation heatmap, dtype listing, class counts
//   - spotcheck: the model battery and the CV/holdout runner
//
// # Quick Start
//
//	go run ./cmd/forestcover --seed 11 --summary --train train.csv --test test.csv
//
// Each model prints "Scaled<Name>: <mean>, <std>" for 10-fold CV accuracy and
// then writes tmp-submission-Scaled<Name>.csv.
//
// Errors carry stack traces from cockroachdb/errors and are logged through
// pkg/log, which wraps zerolog.
package forestcover
