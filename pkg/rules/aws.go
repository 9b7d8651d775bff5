package rules

// AWS returns the built-in rule table for the AWS provider vocabulary.
// The data mirrors the declarative tables the original toolchain shipped;
// declaration order is load-bearing (tie-breaks, handler sequencing) and must
// not be reordered casually.
//
// A fresh table is returned on every call so callers can overlay user rules
// without affecting other runs.
func AWS() *Table {
	return &Table{
		Consolidations: []Consolidation{
			{Prefix: "aws_route53", Target: "aws_route53_record.route_53", EdgeService: true},
			{Prefix: "aws_cloudwatch", Target: "aws_cloudwatch_log_group.cloudwatch"},
			{Prefix: "aws_api_gateway", Target: "aws_api_gateway_integration.gateway"},
			{Prefix: "aws_acm", Target: "aws_acm_certificate.acm"},
			{Prefix: "aws_ssm_parameter", Target: "aws_ssm_parameter.ssmparam"},
			{Prefix: "aws_dx", Target: "aws_dx_connection.directconnect", EdgeService: true},
			{Prefix: "aws_lb", Target: "aws_lb.elb"},
			{Prefix: "aws_ecs", Target: "aws_ecs_service.ecs"},
			{Prefix: "aws_internet_gateway", Target: "aws_internet_gateway.igw"},
			{Prefix: "aws_efs_file_system", Target: "aws_efs_file_system.efs"},
			{Prefix: "aws_kms", Target: "aws_kms_key.kms"},
			{Prefix: "aws_eip", Target: "aws_eip.elastic_ip"},
		},

		Annotations: []Annotation{
			{Prefix: "aws_route53", Link: []string{"tv_aws_users.users"}, Arrow: Reverse},
			{Prefix: "aws_dx", Link: []string{"tv_aws_onprem.corporate_datacenter", "tv_aws_cgw.customer_gateway"}, Arrow: Forward},
			{Prefix: "aws_internet_gateway", Link: []string{"tv_aws_internet.internet"}, Delete: []string{"aws_nat_gateway."}, Arrow: Forward},
			{Prefix: "aws_eks_cluster", Link: []string{"aws_eks_service.eks"}, Arrow: Reverse},
			{Prefix: "aws_nat_gateway", Link: []string{"aws_internet_gateway.*"}, Arrow: Forward},
			{Prefix: "aws_ecs_service", Link: []string{"aws_ecr_repository.ecr"}, Arrow: Forward},
			{Prefix: "aws_eks_cluster", Link: []string{"aws_ecr_repository.ecr"}, Arrow: Forward},
			{Prefix: "aws_ecs_", Link: []string{"aws_ecs_cluster.ecs"}, Arrow: Forward},
			{Prefix: "aws_lambda", Link: []string{"aws_cloudwatch_log_group.cloudwatch"}, Arrow: Forward},
		},

		Variants: []Variant{
			{Type: "aws_ecs_service", Keywords: []Keyword{
				{Match: "FARGATE", Variant: "aws_fargate"},
				{Match: "EC2", Variant: "aws_ec2ecs"},
			}},
			{Type: "aws_lb", Keywords: []Keyword{
				{Match: "application", Variant: "aws_alb"},
				{Match: "network", Variant: "aws_nlb"},
			}},
			{Type: "aws_rds", Keywords: []Keyword{
				{Match: "aurora", Variant: "aws_rds_aurora"},
				{Match: "mysql", Variant: "aws_rds_mysql"},
				{Match: "postgres", Variant: "aws_rds_postgres"},
			}},
		},

		Implied: []Implied{
			{Attr: "certificate_arn", Target: "aws_acm_certificate"},
			{Attr: "container_definitions", Target: "aws_ecr_repository"},
		},

		Handlers: []HandlerBinding{
			{Prefix: "aws_cloudfront_distribution", Handler: "cloudfront"},
			{Prefix: "aws_subnet", Handler: "subnet_azs"},
			{Prefix: "aws_appautoscaling_target", Handler: "autoscaling"},
			{Prefix: "aws_efs_file_system", Handler: "efs"},
			{Prefix: "aws_db_subnet", Handler: "db_subnet"},
			{Prefix: "aws_security_group", Handler: "security_group"}, // keep after db_subnet: reads its subnet placement
			{Prefix: "aws_lb", Handler: "load_balancer"},
			{Prefix: "aws_vpc_endpoint", Handler: "vpc_endpoint"},
			{Prefix: "aws_", Handler: "shared_group"},
			{Prefix: "random_string", Handler: "random_string"},
		},

		OuterNodes: []string{"tv_aws_users", "tv_aws_internet"},
		EdgeNodes: []string{
			"aws_route53",
			"aws_cloudfront_distribution",
			"aws_internet_gateway",
			"aws_api_gateway",
			"aws_apigateway",
		},
		GroupNodes: []string{
			"aws_vpc",
			"aws_az",
			"aws_group",
			"aws_appautoscaling_target",
			"aws_subnet",
			"aws_security_group",
			"tv_aws_onprem",
		},

		ReverseArrows: []string{
			"aws_route53",
			"aws_cloudfront",
			"aws_vpc.",
			"aws_subnet.",
			"aws_appautoscaling_target",
			"aws_iam_role.",
			"aws_rds_aurora",
		},
		ForcedDest:   []string{"aws_rds", "aws_instance"},
		ForcedOrigin: []string{"aws_route53"},

		SharedServices: []string{
			"aws_acm_certificate",
			"aws_cloudwatch_log_group",
			"aws_ecr_repository",
			"aws_ecs_cluster",
			"aws_efs_file_system",
			"aws_ssm_parameter",
			"aws_kms_key",
			"aws_eip",
		},

		AlwaysDraw: []string{
			"aws_lb",
			"aws_iam_role",
			"aws_volume_attachment",
			"aws_alb",
			"aws_nlb",
			"aws_efs_mount_target",
			"aws_ecs_service",
			"aws_rds_aurora",
			"aws_rds_mysql",
			"aws_rds_postgres",
		},

		Acronyms: []string{
			"acm", "alb", "db", "ec2", "kms", "elb", "eip", "eks", "ecr",
			"nlb", "efs", "ebs", "iam", "ip", "igw", "api", "ecs", "rds",
			"lb", "nat", "vpc",
		},

		Replacements: []Replacement{
			{From: "az", To: "Availability Zone"},
			{From: "alb", To: "App Load Balancer"},
			{From: "appautoscaling_target", To: "Auto Scaling"},
			{From: "route_table_association", To: "Route Table"},
			{From: "ecs_service_fargate", To: "Fargate"},
			{From: "eip", To: "Elastic IP"},
			{From: "instance", To: "EC2"},
			{From: "lambda_function", To: "Lambda"},
			{From: "iam_role", To: "Role"},
			{From: "dx", To: "Direct Connect"},
			{From: "cloudfront_distribution", To: "Cloudfront"},
			{From: "iam_policy", To: "policy"},
			{From: "this", To: ""},
		},
	}
}
